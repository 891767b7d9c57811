// Package cornerstone implements toolkit.Toolkit over the cornerstone and
// cornerstoneTools libraries loaded in the browser page. Outside of a
// GOOS=js GOARCH=wasm build every operation returns toolkit.ErrUnsupported.
package cornerstone

// Globals the page is expected to define
const (
	CoreGlobal  = "cornerstone"
	ToolsGlobal = "cornerstoneTools"
)
