package mm

// LargePageShift is equal to log2(LargePageSize). ARMv7 short-descriptor
// sections cover 1M.
const LargePageShift = uintptr(20)
