// Package stores provides the SQLite run journal for ccs-install. It records
// every reconciliation run and the outcome of each install and uninstall so
// image builds can be audited afterwards. The journal is write-mostly: the
// reconciler never reads installed state back from it.
package stores
