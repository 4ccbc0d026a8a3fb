package narration

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// SampleRate is the fixed rate generated speech is decoded at.
const SampleRate = 24000

// Buffer is decoded mono 16-bit audio.
type Buffer struct {
	SampleRate int
	Samples    []int16
}

// Duration is the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// PCMDecoder decodes raw signed 16-bit little-endian mono PCM.
type PCMDecoder struct{}

func (PCMDecoder) Decode(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, errors.New("empty audio")
	}
	if len(data)%2 != 0 {
		return Buffer{}, fmt.Errorf("truncated pcm: %d bytes", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return Buffer{SampleRate: SampleRate, Samples: samples}, nil
}

// chunkSamples is how many samples are written between cancellation checks.
const chunkSamples = 2400

// WriterGraph is an audio context that writes each started buffer as a WAV
// stream to an io.Writer. With Realtime set, writes are paced to the
// buffer's duration.
type WriterGraph struct {
	W        io.Writer
	Realtime bool

	mu     sync.Mutex
	closed bool
}

// NewWriterGraph returns a graph writing to w.
func NewWriterGraph(w io.Writer, realtime bool) *WriterGraph {
	return &WriterGraph{W: w, Realtime: realtime}
}

func (g *WriterGraph) Start(buf Buffer) (Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, errors.New("audio context closed")
	}
	return &bufferStream{g: g, buf: buf, stop: make(chan struct{})}, nil
}

func (g *WriterGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

type bufferStream struct {
	g    *WriterGraph
	buf  Buffer
	once sync.Once
	stop chan struct{}
}

func (s *bufferStream) Play(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return nil
	default:
	}
	if err := writeWAVHeader(s.g.W, s.buf); err != nil {
		return err
	}
	chunk := make([]byte, 0, chunkSamples*2)
	for start := 0; start < len(s.buf.Samples); start += chunkSamples {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		default:
		}
		end := min(start+chunkSamples, len(s.buf.Samples))
		chunk = chunk[:0]
		for _, v := range s.buf.Samples[start:end] {
			chunk = binary.LittleEndian.AppendUint16(chunk, uint16(v))
		}
		if _, err := s.g.W.Write(chunk); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		if s.g.Realtime {
			pace := time.Duration(end-start) * time.Second / time.Duration(s.buf.SampleRate)
			select {
			case <-time.After(pace):
			case <-ctx.Done():
				return ctx.Err()
			case <-s.stop:
				return nil
			}
		}
	}
	return nil
}

func (s *bufferStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func writeWAVHeader(w io.Writer, buf Buffer) error {
	dataLen := uint32(len(buf.Samples) * 2)
	hdr := make([]byte, 0, 44)
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 36+dataLen)
	hdr = append(hdr, "WAVEfmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 16)
	hdr = binary.LittleEndian.AppendUint16(hdr, 1) // PCM
	hdr = binary.LittleEndian.AppendUint16(hdr, 1) // mono
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(buf.SampleRate))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(buf.SampleRate*2))
	hdr = binary.LittleEndian.AppendUint16(hdr, 2)
	hdr = binary.LittleEndian.AppendUint16(hdr, 16)
	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, dataLen)
	_, err := w.Write(hdr)
	return err
}

// HTTPSource fetches pre-recorded narration over HTTP and copies it to
// Sink. A file counts as playable once its first bytes have arrived.
type HTTPSource struct {
	Client *http.Client
	Sink   io.Writer
}

func (h *HTTPSource) Open(ctx context.Context, url string) (Stream, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	br := bufio.NewReader(resp.Body)
	if _, err := br.Peek(1); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return &httpStream{body: resp.Body, r: br, sink: h.Sink, stop: make(chan struct{})}, nil
}

type httpStream struct {
	body io.ReadCloser
	r    io.Reader
	sink io.Writer
	once sync.Once
	stop chan struct{}
}

func (s *httpStream) Play(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return nil
	default:
	}
	sink := s.sink
	if sink == nil {
		sink = io.Discard
	}
	_, err := io.Copy(sink, s.r)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *httpStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.body.Close()
	})
	return err
}
