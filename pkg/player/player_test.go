package player

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ccalmels/opengl-player/pkg/clock"
	"github.com/ccalmels/opengl-player/pkg/decoder"
	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/ccalmels/opengl-player/pkg/gpu/softgpu"
	"github.com/ccalmels/opengl-player/pkg/shader"
	"github.com/ccalmels/opengl-player/pkg/surface"
	"github.com/stretchr/testify/require"
)

const frameInterval = 40 * time.Millisecond

type syntheticPacket struct {
	index int
}

func (p *syntheticPacket) StreamIndex() int { return 0 }
func (p *syntheticPacket) Release()         {}

// syntheticInput is a 25fps stream of NV12 frames, the frame #i having
// the timestamp i and the luma value 16*(i+1).
type syntheticInput struct {
	locker      sync.Mutex
	frameCount  int
	width       int
	height      int
	pixelFormat frame.PixelFormat
	readCount   int
	newDecErr   error
	hwRequested []decoder.HardwareDeviceKind

	// stalled makes NewDecoder wait for the context to be done.
	stalled bool

	// live makes ReadPacket wait for more data instead of reporting the
	// end of the stream once all the frames are read.
	live bool
}

func newSyntheticInput(frameCount int) *syntheticInput {
	return &syntheticInput{
		frameCount:  frameCount,
		width:       8,
		height:      4,
		pixelFormat: frame.PixelFormatNV12,
	}
}

func (in *syntheticInput) VideoStreamIndex(ctx context.Context) (int, error) { return 0, nil }
func (in *syntheticInput) TimeBase(int) frame.Rational                       { return frame.Rational{Num: 1, Den: 25} }
func (in *syntheticInput) Close() error                                      { return nil }

func (in *syntheticInput) ReadPacket(ctx context.Context) (decoder.Packet, error) {
	in.locker.Lock()
	defer in.locker.Unlock()
	if in.readCount >= in.frameCount {
		if in.live {
			in.locker.Unlock()
			<-ctx.Done()
			in.locker.Lock()
			return nil, ctx.Err()
		}
		return nil, io.EOF
	}
	in.readCount++
	return &syntheticPacket{index: in.readCount - 1}, nil
}

func (in *syntheticInput) NewDecoder(
	ctx context.Context,
	hwPreference []decoder.HardwareDeviceKind,
	streamIndex int,
) (decoder.Decoder, error) {
	in.locker.Lock()
	defer in.locker.Unlock()
	in.hwRequested = hwPreference
	if in.stalled {
		in.locker.Unlock()
		<-ctx.Done()
		in.locker.Lock()
		return nil, ctx.Err()
	}
	if in.newDecErr != nil {
		return nil, in.newDecErr
	}
	return &syntheticDecoder{input: in}, nil
}

type syntheticDecoder struct {
	input    *syntheticInput
	pending  []int
	flushing bool
}

func (d *syntheticDecoder) SendPacket(ctx context.Context, pkt decoder.Packet) error {
	if pkt == nil {
		d.flushing = true
		return nil
	}
	d.pending = append(d.pending, pkt.(*syntheticPacket).index)
	return nil
}

func (d *syntheticDecoder) ReceiveFrame(ctx context.Context) (*frame.Frame, error) {
	if len(d.pending) == 0 {
		if d.flushing {
			return nil, io.EOF
		}
		return nil, decoder.ErrNeedMoreInput
	}
	idx := d.pending[0]
	d.pending = d.pending[1:]
	return d.input.frame(idx), nil
}

func (d *syntheticDecoder) HardwareDeviceKind() decoder.HardwareDeviceKind {
	return decoder.HardwareDeviceKindNone
}

func (d *syntheticDecoder) Close() error { return nil }

func (in *syntheticInput) frame(idx int) *frame.Frame {
	luma := byte(16 * (idx + 1))
	w, h := in.width, in.height
	yPlane := make([]byte, w*h)
	for i := range yPlane {
		yPlane[i] = luma
	}
	uvPlane := make([]byte, w*h/2)
	for i := range uvPlane {
		uvPlane[i] = 128
	}
	return &frame.Frame{
		Timestamp:   int64(idx),
		Width:       w,
		Height:      h,
		PixelFormat: in.pixelFormat,
		Planes: []frame.Plane{
			{Data: yPlane, Stride: w, Height: h},
			{Data: uvPlane, Stride: w, Height: h / 2},
		},
	}
}

// presentedLuma records the red channel of the top-left pixel, which is
// the luma of the frame when the chroma is neutral.
type presentedLuma struct {
	locker sync.Mutex
	values []uint8
}

func (p *presentedLuma) Present(ctx context.Context, img *image.RGBA) error {
	p.locker.Lock()
	defer p.locker.Unlock()
	p.values = append(p.values, img.Pix[0])
	return nil
}

func (p *presentedLuma) Values() []uint8 {
	p.locker.Lock()
	defer p.locker.Unlock()
	return append([]uint8{}, p.values...)
}

type testEnv struct {
	ctx       context.Context
	clock     *clock.Mock
	input     *syntheticInput
	presenter *presentedLuma
	gpu       *softgpu.GPU
	player    *Player
}

func newTestEnv(t *testing.T, input *syntheticInput, opts ...Option) *testEnv {
	ctx := context.Background()
	presenter := &presentedLuma{}
	g, err := softgpu.New(softgpu.Config{Width: 8, Height: 4}, presenter)
	require.NoError(t, err)

	fs, err := shader.Defaults()
	require.NoError(t, err)
	programs, err := shader.Load(ctx, fs)
	require.NoError(t, err)

	clk := clock.NewMock()
	opts = append([]Option{OptionClock{Clock: clk}}, opts...)
	return &testEnv{
		ctx:       ctx,
		clock:     clk,
		input:     input,
		presenter: presenter,
		gpu:       g,
		player:    New(ctx, input, g, programs, opts...),
	}
}

// waitProducer waits until the producer is blocked on a full queue or
// has finished, so that each step observes a deterministic queue.
func (env *testEnv) waitProducer(t *testing.T) {
	q := env.player.queue
	require.Eventually(t, func() bool {
		return q.Len(env.ctx) == q.Capacity() || q.IsStopped(env.ctx)
	}, time.Second, time.Millisecond)
}

func (env *testEnv) play(t *testing.T, tick time.Duration) []StepResult {
	var results []StepResult
	for i := 0; i < 100; i++ {
		env.waitProducer(t)
		if env.player.queue.Len(env.ctx) == 0 {
			require.Eventually(t, func() bool {
				return env.player.queue.IsStopped(env.ctx)
			}, time.Second, time.Millisecond)
		}
		result, err := env.player.Step(env.ctx)
		require.NoError(t, err)
		if result == StepResultEnded {
			return results
		}
		results = append(results, result)
		env.clock.Add(tick)
	}
	require.Fail(t, "the stream never ended")
	return nil
}

func TestPlayerMatchingRate(t *testing.T) {
	env := newTestEnv(t, newSyntheticInput(4))
	require.NoError(t, env.player.Start(env.ctx))

	results := env.play(t, frameInterval)
	require.Equal(t, []StepResult{
		StepResultPresented,
		StepResultPresented,
		StepResultPresented,
		StepResultPresented,
	}, results)
	require.Equal(t, []uint8{16, 32, 48, 64}, env.presenter.Values())

	require.NoError(t, env.player.Close(env.ctx))
	stats := env.player.Stats()
	require.Equal(t, uint64(4), stats.Presented)
	require.Equal(t, uint64(0), stats.Dropped)
	require.Equal(t, uint64(4), stats.Pushed)
	require.Equal(t, 0, env.gpu.TextureCount())
	require.Equal(t, decoder.DefaultHardwarePreference, env.input.hwRequested)
}

func TestPlayerHalfRate(t *testing.T) {
	env := newTestEnv(t, newSyntheticInput(4))
	require.NoError(t, env.player.Start(env.ctx))

	results := env.play(t, 2*frameInterval)
	require.Equal(t, []StepResult{
		StepResultPresented,
		StepResultPresented,
		StepResultPresented,
	}, results)
	require.Equal(t, []uint8{16, 48, 64}, env.presenter.Values())

	require.NoError(t, env.player.Close(env.ctx))
	stats := env.player.Stats()
	require.Equal(t, uint64(3), stats.Presented)
	require.Equal(t, uint64(1), stats.Dropped)
}

func TestPlayerIdleTicks(t *testing.T) {
	env := newTestEnv(t, newSyntheticInput(2))
	require.NoError(t, env.player.Start(env.ctx))

	results := env.play(t, frameInterval/4)
	require.Equal(t, []StepResult{
		StepResultPresented,
		StepResultIdle,
		StepResultIdle,
		StepResultIdle,
		StepResultPresented,
	}, results)
	require.NoError(t, env.player.Close(env.ctx))
	require.Equal(t, uint64(2), env.gpu.PresentCount())
}

func TestPlayerDecoderUnavailable(t *testing.T) {
	input := newSyntheticInput(4)
	input.newDecErr = fmt.Errorf("no decoder")
	env := newTestEnv(t, input, OptionHardwarePreference(nil))

	err := env.player.Start(env.ctx)
	require.ErrorIs(t, err, ErrNoFrames)
	var unavailable decoder.ErrDecoderUnavailable
	require.ErrorAs(t, err, &unavailable)
	require.NoError(t, env.player.Close(env.ctx))
	require.Empty(t, env.input.hwRequested)
}

func TestPlayerUnsupportedPixelFormat(t *testing.T) {
	input := newSyntheticInput(4)
	input.pixelFormat = frame.PixelFormatUnsupported
	env := newTestEnv(t, input)

	err := env.player.Start(env.ctx)
	var unsupported surface.ErrUnsupportedPixelFormat
	require.ErrorAs(t, err, &unsupported)
	require.NoError(t, env.player.Close(env.ctx))
	require.True(t, env.player.queue.IsStoppedAndEmpty(env.ctx))
}

func TestPlayerRun(t *testing.T) {
	env := newTestEnv(t, newSyntheticInput(4), OptionRefreshInterval(frameInterval))

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			env.clock.Add(frameInterval)
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, env.player.Run(ctx))
	stats := env.player.Stats()
	require.Equal(t, uint64(4), stats.Presented+stats.Dropped)
	require.Equal(t, 0, env.gpu.TextureCount())
}

func TestPlayerRunInterruptedBeforeFirstFrame(t *testing.T) {
	input := newSyntheticInput(4)
	input.stalled = true
	env := newTestEnv(t, input)

	ctx, cancel := context.WithCancel(env.ctx)
	time.AfterFunc(10*time.Millisecond, cancel)

	require.NoError(t, env.player.Run(ctx))
	require.Zero(t, env.player.Stats().Presented)
	require.True(t, env.player.queue.IsStoppedAndEmpty(env.ctx))
}

func TestPlayerCloseInterruptsBlockedRead(t *testing.T) {
	input := newSyntheticInput(2)
	input.live = true
	env := newTestEnv(t, input)
	require.NoError(t, env.player.Start(env.ctx))

	result, err := env.player.Step(env.ctx)
	require.NoError(t, err)
	require.Equal(t, StepResultPresented, result)

	closed := make(chan error, 1)
	go func() {
		closed <- env.player.Close(env.ctx)
	}()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "Close is blocked by the pending read")
	}
	require.NoError(t, env.player.ProducerError())
	require.Equal(t, 0, env.gpu.TextureCount())
}
