//go:build !fpdebug

package fixedpt

const checkOverflow = false
