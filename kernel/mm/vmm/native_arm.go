package vmm

// Native is the page table format used by the CPU this kernel is built for.
var Native = ARMv7
