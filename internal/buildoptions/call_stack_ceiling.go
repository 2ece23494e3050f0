package buildoptions

// CallStackCeiling is the default maximum activation (call frame) depth before the interpreter raises a
// call-stack-exhaustion trap. RuntimeConfig.WithCallStackCeiling lets an embedder override this per Runtime.
const CallStackCeiling = 256
