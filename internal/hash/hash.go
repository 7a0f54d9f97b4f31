// Package hash computes a 64-bit content-identity hash of a file's bytes on
// a bounded worker pool, offered in synchronous and asynchronous forms.
package hash

import (
	"io"
	"os"
	"runtime"

	"github.com/cespare/xxhash/v2"
)

// Service hashes file contents. Callers never own worker threads.
type Service interface {
	HashSync(path string) (uint64, error)
	HashAsync(path string) <-chan Result
	Close()
}

// Result is the outcome of an asynchronous hash job.
type Result struct {
	Hash uint64
	Err  error
}

type job struct {
	path  string
	reply chan<- Result
}

// WorkerPool is the production Service: a fixed pool of goroutines sized to
// the number of CPUs, fed by a buffered job channel, mirroring the scanner's
// own worker-pool dispatch idiom.
type WorkerPool struct {
	jobs chan job
	done chan struct{}
}

// NewWorkerPool starts numWorkers goroutines (runtime.NumCPU() when <= 0).
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	p := &WorkerPool{
		jobs: make(chan job, numWorkers*4),
		done: make(chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	for {
		select {
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			h, err := computeHash(j.path)
			j.reply <- Result{Hash: h, Err: err}
		case <-p.done:
			return
		}
	}
}

func (p *WorkerPool) HashSync(path string) (uint64, error) {
	reply := make(chan Result, 1)
	p.jobs <- job{path: path, reply: reply}
	res := <-reply
	return res.Hash, res.Err
}

func (p *WorkerPool) HashAsync(path string) <-chan Result {
	reply := make(chan Result, 1)
	p.jobs <- job{path: path, reply: reply}
	return reply
}

func (p *WorkerPool) Close() {
	close(p.done)
}

func computeHash(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// InMemory is a test double returning a fixed hash, or an error when Fail is set.
type InMemory struct {
	Fixed uint64
	Fail  error
}

func (m *InMemory) HashSync(path string) (uint64, error) {
	if m.Fail != nil {
		return 0, m.Fail
	}
	return m.Fixed, nil
}

func (m *InMemory) HashAsync(path string) <-chan Result {
	ch := make(chan Result, 1)
	h, err := m.HashSync(path)
	ch <- Result{Hash: h, Err: err}
	return ch
}

func (m *InMemory) Close() {}
