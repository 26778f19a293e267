package smdr

import "strings"

// Class - что за строка пришла от станции.
type Class int

const (
	Candidate Class = iota
	Empty
	Noise
)

func (c Class) String() string {
	switch c {
	case Empty:
		return "empty"
	case Noise:
		return "noise"
	default:
		return "candidate"
	}
}

// Classify принимает уже нормализованную строку.
// Шапку станция перепечатывает между блоками вызовов, в данные она попасть не должна.
func (g Grammar) Classify(line string) Class {
	if line == "" {
		return Empty
	}
	if g.Banner != "" && strings.Contains(line, Normalize(g.Banner)) {
		return Noise
	}
	// сравниваем токены целиком, иначе CO ловится в имени абонента
	for _, tok := range strings.Split(line, " ") {
		for _, n := range g.NoiseTokens {
			if tok == n {
				return Noise
			}
		}
	}
	return Candidate
}
