package config

// Known keys of the store.
const (
	KeyHost              = "audio.host"
	KeyOutputDevice      = "audio.output.device"
	KeyInputDevice       = "audio.input.device"
	KeyOutputStream      = "audio.output.stream"
	KeyInputStream       = "audio.input.stream"
	KeyOutputBufferSize  = "audio.output.buffer_size"
	KeyInputBufferSize   = "audio.input.buffer_size"
	KeyReconcileInterval = "console.reconcile_interval"
	KeyBackendTimeout    = "console.backend_timeout"
	KeyChainLength       = "rack.chain_length" // informational, the chain length is fixed
)
