package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Daily - отладочный журнал: по файлу "PhoneLog <дата>.txt" на каждый день,
// одна строка на запись.
type Daily struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
	day string
	f   *os.File
}

func NewDaily(dir string) (*Daily, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Daily{dir: dir, now: time.Now}, nil
}

// FileName - имя файла журнала за день t.
func FileName(t time.Time) string {
	return "PhoneLog " + t.Format("1-2-2006") + ".txt"
}

func (d *Daily) Write(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := FileName(d.now())
	// наступил новый день - переоткрываем
	if d.f == nil || name != d.day {
		if d.f != nil {
			d.f.Close()
			d.f = nil
		}
		f, err := os.OpenFile(filepath.Join(d.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		d.f, d.day = f, name
	}
	_, err := fmt.Fprintln(d.f, line)
	return err
}

func (d *Daily) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// File - просто дописываем строки в один файл.
type File struct {
	mu sync.Mutex
	f  *os.File
}

func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

func (f *File) Write(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := fmt.Fprintln(f.f, line)
	return err
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f.Close()
}
