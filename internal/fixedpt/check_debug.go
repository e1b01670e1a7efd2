//go:build fpdebug

package fixedpt

// Build with -tags fpdebug to panic on fixed-point overflow.
const checkOverflow = true
