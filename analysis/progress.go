package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Progress is the analyzer's crash-recovery record. Turn keys are decimal
// strings to match the on-disk JSON shape.
type Progress struct {
	AnalyzedStates map[string]int `json:"analyzedStates"`
	TotalStates    map[string]int `json:"totalStates"`
	LastUpdated    time.Time      `json:"lastUpdated"`
	IsComplete     bool           `json:"isComplete"`
}

func NewProgress() *Progress {
	return &Progress{
		AnalyzedStates: make(map[string]int),
		TotalStates:    make(map[string]int),
	}
}

// LoadProgress reads the record at path; a missing file yields a fresh one.
func LoadProgress(path string) (*Progress, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewProgress(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	p := NewProgress()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	if p.AnalyzedStates == nil {
		p.AnalyzedStates = make(map[string]int)
	}
	if p.TotalStates == nil {
		p.TotalStates = make(map[string]int)
	}
	return p, nil
}

// Save stamps the record and writes it atomically.
func (p *Progress) Save(path string) error {
	p.LastUpdated = time.Now().UTC()
	p.IsComplete = p.computeComplete()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	return nil
}

func (p *Progress) computeComplete() bool {
	if len(p.TotalStates) == 0 {
		return false
	}
	for turn, total := range p.TotalStates {
		if total > 0 && p.AnalyzedStates[turn] < total {
			return false
		}
	}
	return true
}

func turnKey(turn int) string {
	return strconv.Itoa(turn)
}

func (p *Progress) Analyzed(turn int) int {
	return p.AnalyzedStates[turnKey(turn)]
}

func (p *Progress) Total(turn int) int {
	return p.TotalStates[turnKey(turn)]
}

func (p *Progress) SetAnalyzed(turn, count int) {
	p.AnalyzedStates[turnKey(turn)] = count
}

func (p *Progress) SetTotal(turn, count int) {
	p.TotalStates[turnKey(turn)] = count
}

// Remaining sums the states still unanalyzed across all turns.
func (p *Progress) Remaining() int {
	remaining := 0
	for turn, total := range p.TotalStates {
		if done := p.AnalyzedStates[turn]; done < total {
			remaining += total - done
		}
	}
	return remaining
}
