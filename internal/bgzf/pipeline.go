package bgzf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"

	"github.com/vertti/htsio/internal/window"
)

// ErrClosed is returned by reads on a closed Pipeline.
var ErrClosed = errors.New("bgzf: pipeline closed")

type jobState uint8

const (
	jobIdle jobState = iota
	jobProcessing
	jobDone
)

// job is one reusable slot of the pipeline: a compressed block in, the
// decompressed block out, and the codec that turns one into the other.
type job struct {
	state jobState
	ready chan struct{} // closed when state becomes jobDone

	codec      *Codec
	compressed []byte
	out        []byte
	offset     int64 // compressed offset of the block, for errors

	n   int // valid bytes in out
	pos int // bytes of out already delivered
	eof bool
	err error
}

func newJob() *job {
	return &job{
		ready:      make(chan struct{}),
		codec:      newDecoder(),
		compressed: make([]byte, 0, MaxBlockSize),
		out:        make([]byte, MaxBlockSize),
	}
}

func (j *job) reset() {
	j.state = jobIdle
	j.ready = make(chan struct{})
	j.compressed = j.compressed[:0]
	j.n, j.pos = 0, 0
	j.eof = false
	j.err = nil
}

// Pipeline decompresses a BGZF stream with a pool of worker goroutines and
// delivers the output in stream order.
//
// A worker holds the source lock while it claims the first idle job and
// copies the next compressed block out of the source, so the queue order is
// the stream order. The queue lock is only held to pick and publish jobs,
// never across a source read. Decompression runs unlocked. The consumer
// only ever drains the front job, whichever worker finishes first. Drained
// jobs go to the back of the queue as idle.
//
// A worker error is stored on its job and returned by Read once that job
// reaches the front; no further blocks are dispatched after it, and Close
// returns it too. A stalled source stalls the blocks behind it: there are
// no timeouts.
type Pipeline struct {
	srcMu sync.Mutex // held across one block read; taken before mu
	src   *window.Buffer

	mu        sync.Mutex
	idle      *sync.Cond // signalled when a job turns idle or on shutdown
	queue     []*job     // front is the next job to deliver
	shutdown  bool
	exhausted bool // source ended or failed; nothing more to claim

	ctx    context.Context // the consumer's
	cancel context.CancelFunc
	stop   func() bool
	g      *errgroup.Group
	gctx   context.Context // the workers'; also done on the first worker error

	delivered *job // front job handed out by NextBlock
	err       error
}

// NewPipeline starts workers goroutines decompressing the BGZF stream in
// src. workers <= 0 means runtime.NumCPU(). The Pipeline owns src until
// Close. Cancelling ctx shuts the pipeline down.
func NewPipeline(ctx context.Context, src *window.Buffer, workers int) *Pipeline {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		src:    src,
		queue:  make([]*job, 0, workers+1),
		ctx:    ctx,
		cancel: cancel,
	}
	p.idle = sync.NewCond(&p.mu)
	for range workers + 1 {
		p.queue = append(p.queue, newJob())
	}
	p.g, p.gctx = errgroup.WithContext(ctx)
	p.stop = context.AfterFunc(p.gctx, p.halt)

	for id := range workers {
		p.g.Go(func() error {
			return p.runWorker(id)
		})
	}
	return p
}

func (p *Pipeline) runWorker(id int) error {
	if log.At(log.Debug) {
		log.Debug.Printf("bgzf: worker %d started", id)
	}
	var (
		blocks int
		err    error
	)
	for {
		var j *job
		if j, err = p.claim(); j == nil {
			break
		}
		if err = p.decompress(j); err != nil {
			break
		}
		blocks++
	}
	if log.At(log.Debug) {
		log.Debug.Printf("bgzf: worker %d stopped after %d blocks", id, blocks)
	}
	return err
}

// claim waits for the first idle job and loads it with the next compressed
// block. It returns a nil job when the worker should exit, with the source
// error that ended the stream, if any. Jobs finished while claiming (end of
// stream, read errors) are completed here.
func (p *Pipeline) claim() (*job, error) {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()

	p.mu.Lock()
	var j *job
	for {
		if p.shutdown || p.exhausted {
			p.mu.Unlock()
			return nil, nil
		}
		if j = p.firstIdle(); j != nil {
			break
		}
		p.idle.Wait()
	}
	j.state = jobProcessing
	p.mu.Unlock()

	// j is ours until finish: the consumer only touches done jobs.
	j.offset = p.src.Tell()
	raw, err := nextBlock(p.src)
	if err == nil {
		j.compressed = append(j.compressed[:0], raw...)
		p.src.DropUntil(len(raw))
		return j, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted = true
	switch {
	case errors.Is(err, io.EOF):
		j.eof = true
		err = nil
	case p.shutdown || p.gctx.Err() != nil:
		// Nobody reads past a shutdown; the failure is the source being
		// torn down under us.
		j.err = ErrClosed
		err = nil
	default:
		j.err = err
		if log.At(log.Debug) {
			log.Debug.Printf("bgzf: reading block at %d: %v", j.offset, err)
		}
	}
	p.finish(j)
	return nil, err
}

func (p *Pipeline) firstIdle() *job {
	for _, j := range p.queue {
		if j.state == jobIdle {
			return j
		}
	}
	return nil
}

func (p *Pipeline) decompress(j *job) error {
	n, err := j.codec.Decompress(j.compressed, j.out)

	p.mu.Lock()
	defer p.mu.Unlock()
	j.n = n
	if err != nil {
		err = atOffset(err, j.offset)
		j.err = err
		p.exhausted = true
		if log.At(log.Debug) {
			log.Debug.Printf("bgzf: decompressing block at %d: %v", j.offset, err)
		}
	}
	p.finish(j)
	return err
}

// finish publishes j to the consumer. p.mu must be held.
func (p *Pipeline) finish(j *job) {
	j.state = jobDone
	close(j.ready)
	if p.exhausted {
		p.idle.Broadcast()
	}
}

// front waits for the front job to be done and returns it. The queue order
// and the ready channels are only written by the consumer, so they are read
// here without p.mu.
func (p *Pipeline) front() (*job, error) {
	if p.err != nil {
		return nil, p.err
	}
	j := p.queue[0]

	select {
	case <-j.ready:
	case <-p.ctx.Done():
		// Prefer a result that is already there.
		select {
		case <-j.ready:
		default:
			p.err = p.ctxErr()
			return nil, p.err
		}
	}
	switch {
	case j.err != nil:
		p.err = fmt.Errorf("bgzf pipeline: %w", j.err)
		return nil, p.err
	case j.eof:
		p.err = io.EOF
		return nil, p.err
	}
	return j, nil
}

// recycle moves the drained front job to the back of the queue.
func (p *Pipeline) recycle() {
	p.mu.Lock()
	j := p.queue[0]
	copy(p.queue, p.queue[1:])
	p.queue[len(p.queue)-1] = j
	j.reset()
	p.mu.Unlock()
	p.idle.Signal()
}

// Read fills b with decompressed bytes in stream order.
func (p *Pipeline) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if p.delivered != nil {
		p.delivered = nil
		p.recycle()
	}
	for {
		j, err := p.front()
		if err != nil {
			return 0, err
		}
		if j.pos == j.n {
			p.recycle()
			continue
		}
		k := copy(b, j.out[j.pos:j.n])
		j.pos += k
		if j.pos == j.n {
			p.recycle()
		}
		return k, nil
	}
}

// NextBlock returns the next non-empty decompressed block without copying.
// The slice stays valid until the next call to NextBlock or Read.
func (p *Pipeline) NextBlock() ([]byte, error) {
	if p.delivered != nil {
		p.delivered = nil
		p.recycle()
	}
	for {
		j, err := p.front()
		if err != nil {
			return nil, err
		}
		if j.pos == j.n {
			p.recycle()
			continue
		}
		out := j.out[j.pos:j.n]
		j.pos = j.n
		p.delivered = j
		return out, nil
	}
}

// Close stops the workers, lets in-flight decompression finish, and closes
// the source. It returns the read or decompression error that stopped the
// workers, if any.
func (p *Pipeline) Close() error {
	p.stop()
	p.cancel()
	p.halt()
	err := p.g.Wait()
	if p.err == nil || errors.Is(p.err, io.EOF) {
		p.err = ErrClosed
	}
	if cerr := p.src.Close(); err == nil {
		err = cerr
	}
	return err
}

// halt sets the shutdown flag and wakes every waiting worker.
func (p *Pipeline) halt() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.idle.Broadcast()
}

func (p *Pipeline) ctxErr() error {
	if err := context.Cause(p.ctx); err != nil {
		return err
	}
	return ErrClosed
}
