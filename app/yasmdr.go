package main

import (
	"context"
	_ "net/http/pprof"
	"os"
	"syscall"
	"time"

	"github.com/nevian427/yasmdr/internal/config"
	"github.com/nevian427/yasmdr/internal/journal"
	"github.com/nevian427/yasmdr/internal/model"
	"github.com/nevian427/yasmdr/internal/publisher"
	"github.com/nevian427/yasmdr/internal/server"
	"github.com/nevian427/yasmdr/internal/server/cdr_receiver"
	"github.com/nevian427/yasmdr/internal/server/metrics"
	"github.com/nevian427/yasmdr/internal/server/serial"
	"github.com/nevian427/yasmdr/internal/server/spool"
	"github.com/nevian427/yasmdr/internal/storage"
	"github.com/nevian427/yasmdr/internal/ucase"
	"github.com/oklog/run"
	jww "github.com/spf13/jwalterweatherman"
)

func main() {
	var g run.Group

	cfg, err := config.ParseConfig(os.Args[1:])
	// без конфига нам делать нечего - выход
	if err != nil {
		jww.ERROR.Fatal(err)
	}

	// открываем каналы для работы
	// почему буфер 5 - уже не помню, какая-то эвристика..
	// в обработчик
	inputCh := make(chan model.Line, 5)
	// в метрики
	metricsCh := make(chan model.CallRecord, 5)
	sinks := []ucase.Sink{{Name: "metrics", Ch: metricsCh}}

	// основной контекст для работы - он может закрыть всё
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// получатели дочитывают свои каналы до конца, их не отменяем
	drainCtx := context.Background()

	// источники
	var sources []server.Source
	for _, name := range cfg.SourceList() {
		switch name {
		case "tcp":
			rc := cdr_receiver.NewReceiver(cfg.CDRAddr)
			if err := rc.Listen(); err != nil {
				jww.ERROR.Fatalf("CDR listener: %s", err)
			}
			sources = append(sources, rc)
		case "serial":
			sr, err := serial.NewReader(serial.Options{
				Port:     cfg.SerialPort,
				BaudRate: cfg.BaudRate,
				DataBits: cfg.DataBits,
				Parity:   cfg.Parity,
				StopBits: cfg.StopBits,
			})
			if err != nil {
				jww.ERROR.Fatal(err)
			}
			sources = append(sources, sr)
		case "spool":
			sources = append(sources, spool.New(cfg.SpoolDir, time.Second))
		}
	}

	// запись в БД (из обработчика)
	if cfg.DBDriver != "none" {
		store, err := storage.New(ctx, cfg)
		if err != nil {
			// без БД делать нам нечего - аварийно выходим
			jww.ERROR.Fatal(err)
		}
		defer store.Close()
		if err := store.CreateTable(ctx, cfg.DBTable); err != nil {
			jww.ERROR.Fatal(err)
		}
		dbCh := make(chan model.CallRecord, 5)
		sinks = append(sinks, ucase.Sink{Name: "DB", Ch: dbCh})
		g.Add(func() error { return store.WatchCDR(drainCtx, dbCh) }, func(err error) {})
	}

	// публикация в MQTT, если указан брокер
	if cfg.MQTTBroker != "" {
		pub, err := publisher.NewMQTTPublisher(publisher.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			QoS:      1,
		})
		if err != nil {
			jww.ERROR.Fatal(err)
		}
		defer pub.Close()
		pubCh := make(chan model.CallRecord, 5)
		sinks = append(sinks, ucase.Sink{Name: "MQTT", Ch: pubCh})
		g.Add(func() error { return publisher.WatchCDR(drainCtx, pubCh, pub, cfg.MQTTTopic) }, func(err error) {})
	}

	opt := ucase.Options{Grammar: cfg.Grammar(), MaxMalformed: cfg.MaxMalformed}
	if cfg.JournalDir != "" {
		d, err := journal.NewDaily(cfg.JournalDir)
		if err != nil {
			jww.ERROR.Fatal(err)
		}
		defer d.Close()
		opt.Journal = d
	}
	if cfg.FailCDRFile != "" {
		f, err := journal.OpenFile(cfg.FailCDRFile)
		if err != nil {
			jww.ERROR.Fatal(err)
		}
		defer f.Close()
		opt.Fails = f
	}
	w := ucase.NewWorker(opt, sinks...)

	// источники, по выходу закрывают канал обработчика
	g.Add(func() error { return server.RunSources(ctx, inputCh, sources...) }, func(err error) { cancel() })
	// обработчик, по выходу закрывает каналы получателей
	g.Add(func() error { return w.WorkerCDR(inputCh) }, func(err error) { cancel() })
	// обработчик метрик
	g.Add(func() error { return metrics.MetricsCDR(metricsCh) }, func(err error) {})
	// публикация метрик с отменой контекста по ошибке
	g.Add(func() error { return metrics.ServeMetrics(ctx, cfg.MetricsAddr) }, func(err error) { cancel() })
	// перехват сигналов ОС с отменой контекста
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	// запускаем всё, при ошибке в любой компоненте - выход
	jww.INFO.Printf("Exit with: %v", g.Run())
}
