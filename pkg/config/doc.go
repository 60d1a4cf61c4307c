// Package config loads ccs-install settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// environment variables, then command line flags (applied by the caller).
// The result is checked with struct tags; unit lists use the custom "iu"
// tag, which accepts anything iu.Parse accepts.
//
// A settings file looks like:
//
//	prefix: /opt/ti
//	components: [PF_C28]
//	install:
//	  - com.ti.cgt.c2000.8.linux/18.12.4
//	display:
//	  name: ":0"
//	  screen: 1024x768x16
//	  vnc: true
//	log:
//	  level: debug
//	  format: json
package config
