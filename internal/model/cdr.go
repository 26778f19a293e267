package model

import (
	"strconv"
	"strings"
	"time"
)

// Line - строка в том виде, как её отдал транспорт, без CR/LF.
type Line struct {
	Source   string
	Text     string
	Received time.Time
	// EOF - поток источника кончился (файл дочитан, соединение закрыто),
	// Text пустой. Ждущую строку этого источника клеить больше не с чем.
	EOF bool
}

// CallRecord - одна логическая запись SMDR станции Vodavi XTS.
// Поля станции храним текстом как есть, форматы у прошивок гуляют.
type CallRecord struct {
	Source        string    `db:"host" json:"source"`
	Received      time.Time `db:"received" json:"received"`
	Extension     string    `db:"extension" json:"extension"`
	CircuitID     string    `db:"circuit_id" json:"circuit_id"`
	CallDuration  string    `db:"call_duration" json:"call_duration"`
	CallStartTime string    `db:"call_start_time" json:"call_start_time"`
	CallDate      string    `db:"call_date" json:"call_date"`
	CallType      string    `db:"call_type" json:"call_type"`
	NumberDialed  string    `db:"number_dialed" json:"number_dialed"`
	Qualifier     string    `db:"qualifier" json:"qualifier,omitempty"`
	InternalExt   string    `db:"internal_ext" json:"internal_ext,omitempty"`
	InboundNumber string    `db:"inbound_number" json:"inbound_number,omitempty"`
	// нормализованная склеенная строка, идёт в отладочный журнал
	Line string `db:"-" json:"-"`
}

// Continued сообщает, была ли у записи вторая часть после маркера.
func (r CallRecord) Continued() bool {
	return r.Qualifier != "" || r.InternalExt != "" || r.InboundNumber != ""
}

// DurationSeconds переводит длительность вида HH:MM:SS или MM:SS в секунды.
// Нужна только для метрик, в базу уходит исходный текст.
func (r CallRecord) DurationSeconds() (int, bool) {
	parts := strings.Split(r.CallDuration, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
