//go:build !arm

package mm

// LargePageShift is equal to log2(LargePageSize). 32-bit x86 PSE pages cover
// 4M.
const LargePageShift = uintptr(22)
