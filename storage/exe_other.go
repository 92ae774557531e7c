//go:build !windows

package storage

const exeSuffix = ""
