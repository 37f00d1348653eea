package window

import (
	"context"
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// Window shows the presented images in a fyne window.
type Window struct {
	window      fyne.Window
	canvasImage *canvas.Image

	closeOnce  sync.Once
	closedChan chan struct{}
}

func New(
	app fyne.App,
	title string,
	width, height int,
) *Window {
	w := &Window{
		window:     app.NewWindow(title),
		closedChan: make(chan struct{}),
	}
	w.canvasImage = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, width, height)))
	w.canvasImage.FillMode = canvas.ImageFillStretch
	w.canvasImage.ScaleMode = canvas.ImageScaleFastest
	w.window.SetContent(w.canvasImage)
	w.window.Resize(fyne.NewSize(float32(width), float32(height)))
	w.window.SetOnClosed(w.markClosed)
	return w
}

func (w *Window) markClosed() {
	w.closeOnce.Do(func() {
		close(w.closedChan)
	})
}

// Present shows a copy of img; the caller may reuse img right away.
func (w *Window) Present(ctx context.Context, img *image.RGBA) error {
	logger.Tracef(ctx, "Present")
	defer logger.Tracef(ctx, "/Present")

	select {
	case <-w.closedChan:
		return nil
	default:
	}

	frame := image.NewRGBA(img.Rect)
	copy(frame.Pix, img.Pix)
	w.canvasImage.Image = frame
	w.canvasImage.Refresh()
	return nil
}

func (w *Window) Show() {
	w.window.Show()
}

// ClosedChan is closed when the user closes the window or Close is called.
func (w *Window) ClosedChan() <-chan struct{} {
	return w.closedChan
}

func (w *Window) IsClosed() bool {
	select {
	case <-w.closedChan:
		return true
	default:
		return false
	}
}

func (w *Window) Close() {
	w.window.Close()
	w.markClosed()
}
