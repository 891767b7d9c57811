//go:build js && wasm
// +build js,wasm

package live

import "syscall/js"

// bytesToJS copies a frame into a Uint8Array for WebSocket.send
func bytesToJS(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}

// bytesFromJS copies an ArrayBuffer message payload into Go memory
func bytesFromJS(buffer js.Value) []byte {
	arr := js.Global().Get("Uint8Array").New(buffer)
	data := make([]byte, arr.Get("length").Int())
	js.CopyBytesToGo(data, arr)
	return data
}
