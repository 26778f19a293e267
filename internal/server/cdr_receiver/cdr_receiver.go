package cdr_receiver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/nevian427/yasmdr/internal/model"
	"github.com/nevian427/yasmdr/internal/server"
	jww "github.com/spf13/jwalterweatherman"
)

// Receiver - приёмник данных от станции по TCP. Станция (или конвертер
// COM-Ethernet) сама подключается и шлёт строки SMDR.
type Receiver struct {
	addr string
	ln   *net.TCPListener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewReceiver(addr string) *Receiver {
	return &Receiver{addr: addr, conns: make(map[net.Conn]struct{})}
}

func (r *Receiver) Name() string { return "tcp" }

// Listen занимает порт заранее, чтобы ошибка всплыла до старта остального.
func (r *Receiver) Listen() error {
	if r.ln != nil {
		return nil
	}
	// пытаемся понять куда цепляться
	ta, err := net.ResolveTCPAddr("tcp", r.addr)
	if err != nil {
		return err
	}
	// слушаем порт
	ln, err := net.ListenTCP("tcp", ta)
	if err != nil {
		return err
	}
	r.ln = ln
	jww.INFO.Printf("Started CDR listener on %s", ln.Addr())
	return nil
}

// Addr - реальный адрес после Listen, nil до него.
func (r *Receiver) Addr() net.Addr {
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

func (r *Receiver) Serve(ctx context.Context, out chan<- model.Line) (ErrCDR error) {
	var wg sync.WaitGroup

	if err := r.Listen(); err != nil {
		// возвращаем ошибку и раннер потушит остальное ибо бессмысленно продолжать
		return err
	}

	defer func() {
		if err := r.ln.Close(); err != nil {
			jww.ERROR.Printf("Can't close CDR listener: %s", err)
		}
		// иначе висящие соединения не дадут дождаться горутин
		r.closeConns()
		wg.Wait()
		jww.INFO.Println("Stopped CDR listener")
	}()

	for {
		select {
		// получен сигнал на выход
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// проверяем контекст раз в секунду
		if err := r.ln.SetDeadline(time.Now().Add(time.Second)); err != nil {
			return err
		}

		conn, err := r.ln.Accept()
		// не получилось принять соединение, сообщаем и ждём новое
		if err != nil {
			if opErr, ok := err.(*net.OpError); !ok || !opErr.Timeout() {
				jww.ERROR.Printf("failed to accept CDR connection: %v", err.Error())
			}
			continue
		}

		// обработка входящего соединения
		r.track(conn, true)
		wg.Add(1)
		go func() {
			defer func() {
				jww.INFO.Printf("closing CDR connection from %s", conn.RemoteAddr())
				r.track(conn, false)
				if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
					jww.ERROR.Println(err)
				}
				wg.Done()
			}()

			jww.INFO.Printf("new CDR connection %s -> %s", conn.RemoteAddr(), conn.LocalAddr())

			// источник - адрес станции
			srcIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			err := server.ReadLines(ctx, conn, srcIP, out)
			if err != nil && err != io.EOF && ctx.Err() == nil {
				jww.WARN.Printf("Error handling CDR connection %s\n%s", conn.RemoteAddr(), err)
			}
		}()
	}
}

func (r *Receiver) track(conn net.Conn, add bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if add {
		r.conns[conn] = struct{}{}
	} else {
		delete(r.conns, conn)
	}
}

func (r *Receiver) closeConns() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.conns {
		c.Close()
	}
}
