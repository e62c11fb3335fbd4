package common

// UnknownStr is the String() result for enum values outside their defined range.
const UnknownStr = "unknown"
