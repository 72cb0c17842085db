// Package label provides a thread-safe way of generating unique assembler
// labels for basic blocks, landing pads, jump tables and string literals.
package label

import "fmt"

// Kind differentiates the category of label being generated; the numeric
// suffix sequence is tracked independently per kind.
type Kind int

const (
	Block Kind = iota
	LandingPad
	JumpTable
	StringLiteral
	VTable
	RTTI
	Thunk
)

var prefixes = [...]string{
	Block:         "LBB",
	LandingPad:    "LLP",
	JumpTable:     "LJT",
	StringLiteral: "LSTR",
	VTable:        "LVT",
	RTTI:          "LRTTI",
	Thunk:         "LTHUNK",
}

// requests and responses flow over these channels to serialize label
// allocation across goroutines without a mutex.
var (
	creq chan Kind
	cres chan string
	cclose chan struct{}
)

// indices holds the next numeric suffix per Kind.
var indices [Thunk + 1]int

// Listen starts the label-allocation goroutine. Must be called once before
// any call to New, and Close must be called exactly once after code
// generation finishes (successfully or not).
func Listen() {
	creq = make(chan Kind)
	cres = make(chan string)
	cclose = make(chan struct{})

	go func() {
		defer close(creq)
		defer close(cres)
		for {
			select {
			case <-cclose:
				return
			case k := <-creq:
				if k < 0 || int(k) >= len(indices) {
					cres <- "# LABEL ERROR"
					continue
				}
				cres <- fmt.Sprintf("%s%04d", prefixes[k], indices[k])
				indices[k]++
			}
		}
	}()
}

// New returns a fresh, unique label of the given Kind.
func New(k Kind) string {
	creq <- k
	return <-cres
}

// Close stops the label-allocation goroutine.
func Close() {
	close(cclose)
}
