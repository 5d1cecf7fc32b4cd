package device

// NewSlot exposes newSlot to the external test package.
var NewSlot = newSlot
