//go:build accel

package main

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Builds with `-tags accel` link gonum against the netlib cgo BLAS.
func init() {
	blas64.Use(netlib.Implementation{})
}
