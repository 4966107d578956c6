package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window owns the native window the effect viewer draws into and forwards its input events.
type Window interface {
	// SetFrameCallback sets the function called once per loop iteration with the seconds
	// elapsed since the previous iteration. The first call receives 0.
	//
	// Parameters:
	//   - callback: function receiving the frame delta (or nil to disable)
	SetFrameCallback(callback func(dt float32))

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical scroll delta (positive = toward the target)
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press and key repeat events.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common key codes)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SurfaceDescriptor returns a descriptor the renderer can create its WebGPU surface from.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close destroys the window. Calling Close twice returns an error.
	Close() error

	// Run pumps window events until the window closes, invoking the frame callback each
	// iteration. Must be called from the goroutine that created the window.
	Run()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

type engineWindow struct {
	title string

	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int

	// width and height track the framebuffer, not the window frame; they differ on high-DPI displays.
	width  int
	height int

	internalWindow *glfwWindow
	lastFrame      float64

	onFrame   func(dt float32)
	onResize  func(width, height int)
	onScroll  func(delta float32)
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow opens a native window configured by options.
// It panics if the windowing system cannot be initialized, since nothing can render without it.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:     "disintegrate",
		minWidth:  320,
		minHeight: 240,
		maxWidth:  3840,
		maxHeight: 2160,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("window: %v", err))
	}
	return w
}

func (w *engineWindow) SetFrameCallback(callback func(dt float32)) {
	w.onFrame = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Run() {
	w.lastFrame = platformTime()
	first := true
	for w.IsRunning() {
		if ok := platformProcessMessages(w); !ok {
			break
		}

		now := platformTime()
		dt := float32(now - w.lastFrame)
		w.lastFrame = now
		if first {
			dt = 0
			first = false
		}

		if w.onFrame != nil {
			w.onFrame(dt)
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
