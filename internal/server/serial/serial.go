package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nevian427/yasmdr/internal/model"
	"github.com/nevian427/yasmdr/internal/server"
	jww "github.com/spf13/jwalterweatherman"
	"go.bug.st/serial"
)

var ErrSerialParam = errors.New("invalid serial parameter:")

type Options struct {
	Port     string
	BaudRate int
	DataBits int
	Parity   string
	StopBits string
	// пауза между попытками открыть порт
	Retry time.Duration
}

// Reader читает SMDR прямо с COM-порта станции. Порт пропал -
// переоткрываем, пока не отменят контекст.
type Reader struct {
	port  string
	mode  *serial.Mode
	retry time.Duration
	open  func(port string, mode *serial.Mode) (io.ReadCloser, error)
}

func NewReader(opt Options) (*Reader, error) {
	parity, err := ParseParity(opt.Parity)
	if err != nil {
		return nil, err
	}
	stop, err := ParseStopBits(opt.StopBits)
	if err != nil {
		return nil, err
	}
	if opt.Retry <= 0 {
		opt.Retry = 5 * time.Second
	}
	return &Reader{
		port: opt.Port,
		mode: &serial.Mode{
			BaudRate: opt.BaudRate,
			DataBits: opt.DataBits,
			Parity:   parity,
			StopBits: stop,
		},
		retry: opt.Retry,
		open: func(port string, mode *serial.Mode) (io.ReadCloser, error) {
			return serial.Open(port, mode)
		},
	}, nil
}

func (r *Reader) Name() string { return "serial" }

func (r *Reader) Serve(ctx context.Context, out chan<- model.Line) error {
	for {
		err := r.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		jww.WARN.Printf("Serial port %s: %s, retry in %s", r.port, err, r.retry)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retry):
		}
	}
}

// одно открытие порта, до ошибки чтения или отмены
func (r *Reader) session(ctx context.Context, out chan<- model.Line) error {
	p, err := r.open(r.port, r.mode)
	if err != nil {
		return err
	}
	jww.INFO.Printf("Opened serial port %s (%d %d %v %v)", r.port, r.mode.BaudRate, r.mode.DataBits, r.mode.Parity, r.mode.StopBits)

	// Read блокируется намертво, разблокирует только Close
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		p.Close()
	}()

	err = server.ReadLines(ctx, p, r.port, out)
	if err == io.EOF {
		return fmt.Errorf("port closed")
	}
	return err
}

// ParseParity понимает имена из настроек старого логгера: None, Odd, Even, Mark, Space.
func ParseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return serial.NoParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	}
	return serial.NoParity, fmt.Errorf("%w parity %q", ErrSerialParam, s)
}

func ParseStopBits(s string) (serial.StopBits, error) {
	switch strings.ToLower(s) {
	case "", "one", "1":
		return serial.OneStopBit, nil
	case "onepointfive", "1.5":
		return serial.OnePointFiveStopBits, nil
	case "two", "2":
		return serial.TwoStopBits, nil
	}
	return serial.OneStopBit, fmt.Errorf("%w stop bits %q", ErrSerialParam, s)
}
