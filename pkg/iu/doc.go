// Package iu models installable units (IUs): named, versioned optional
// components managed by the IDE's p2 provisioning layer.
//
// A unit is written in its canonical form as name/seg.seg.seg, for example
//
//	com.ti.cgt.c2000.8.linux/18.12.4
//
// Version segments are opaque string tokens. They are compared by string
// equality only, never numerically, so the lexical form that was parsed is
// exactly the form that is rendered back.
package iu
