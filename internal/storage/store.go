// Package storage keeps discovered hits on disk, one directory per hit.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/hologram"
	"github.com/san-kum/zoosearch/internal/search"
)

const (
	metadataFile  = "metadata.json"
	densityFile   = "density.txt"
	occupancyFile = "occupancy.csv"
)

var ErrNoOccupancy = errors.New("hit has no occupancy data")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

// RunParams are the settings a hit was classified under.
type RunParams struct {
	Alphabet            string             `json:"alphabet"`
	StateSymbols        string             `json:"state_symbols"`
	Integrator          string             `json:"integrator"`
	SampleRate          int                `json:"sample_rate"`
	Duration            float64            `json:"duration"`
	Bound               float64            `json:"bound"`
	FixedPointTolerance float64            `json:"fixed_point_tolerance"`
	InitialPosition     [3]float64         `json:"initial_position"`
	Constants           map[string]float64 `json:"constants,omitempty"`
}

type HitMetadata struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Index       int       `json:"index"`
	Expressions [3]string `json:"expressions"`
	Program     string    `json:"program"`
	Behavior    string    `json:"behavior"`
	Fault       string    `json:"fault,omitempty"`
	Steps       int       `json:"steps"`
	Box         fly.Box   `json:"box"`
	Occupied    int       `json:"occupied_cells,omitempty"`
	GridRadius  float64   `json:"grid_radius,omitempty"`
	GridBins    [3]int    `json:"grid_bins"`
	Run         RunParams `json:"run"`
}

// Save writes the hit under a fresh UUID directory and returns the ID.
func (s *Store) Save(hit *search.Outcome, run RunParams) (string, error) {
	if hit == nil {
		return "", errors.New("nil hit")
	}
	id := uuid.NewString()
	hitDir := filepath.Join(s.baseDir, id)

	if err := os.MkdirAll(hitDir, 0755); err != nil {
		return "", err
	}

	meta := HitMetadata{
		ID:          id,
		Timestamp:   time.Now(),
		Index:       hit.Index,
		Expressions: hit.Triple,
		Program:     hit.Program,
		Behavior:    hit.Result.Behavior.String(),
		Steps:       hit.Result.Steps,
		Box:         hit.Result.Box,
		Run:         run,
	}
	if hit.Result.Err != nil {
		meta.Fault = hit.Result.Err.Error()
	}
	if g := hit.Grid; g != nil {
		meta.Occupied = g.Occupied()
		meta.GridRadius = g.Radius()
		nx, ny, nz := g.Bins()
		meta.GridBins = [3]int{nx, ny, nz}
	}

	if err := writeJSON(filepath.Join(hitDir, metadataFile), meta); err != nil {
		return "", err
	}

	if hit.Grid == nil {
		return id, nil
	}
	if err := writeDensity(filepath.Join(hitDir, densityFile), hit.Grid); err != nil {
		return "", err
	}
	if err := writeOccupancy(filepath.Join(hitDir, occupancyFile), hit.Grid); err != nil {
		return "", err
	}
	return id, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDensity(path string, g *hologram.Grid) error {
	var b strings.Builder
	for _, axis := range []int{hologram.Z, hologram.Y, hologram.X} {
		m, err := g.DensityMap(axis)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "# collapsed along %s\n%s\n", hologram.AxisName(axis), m)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func writeOccupancy(path string, g *hologram.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"i", "j", "k", "count"}); err != nil {
		return err
	}

	var werr error
	g.Each(func(i, j, k int, count uint32) {
		if werr != nil {
			return
		}
		werr = w.Write([]string{
			strconv.Itoa(i),
			strconv.Itoa(j),
			strconv.Itoa(k),
			strconv.FormatUint(uint64(count), 10),
		})
	})
	if werr != nil {
		return werr
	}
	w.Flush()
	return w.Error()
}

// List returns every readable hit, newest first.
func (s *Store) List() ([]HitMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []HitMetadata{}, nil
		}
		return nil, err
	}

	hits := make([]HitMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		hits = append(hits, *meta)
	}

	sort.Slice(hits, func(a, b int) bool { return hits[a].Timestamp.After(hits[b].Timestamp) })
	return hits, nil
}

func (s *Store) Load(id string) (*HitMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta HitMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadDensity(id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, densityFile))
	if os.IsNotExist(err) {
		return "", ErrNoOccupancy
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadOccupancy rebuilds the grid recorded with the hit.
func (s *Store) LoadOccupancy(id string) (*hologram.Grid, error) {
	meta, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.baseDir, id, occupancyFile))
	if os.IsNotExist(err) {
		return nil, ErrNoOccupancy
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	g, err := hologram.New(meta.GridRadius, meta.GridBins[0], meta.GridBins[1], meta.GridBins[2])
	if err != nil {
		return nil, fmt.Errorf("hit %s: %w", id, err)
	}

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	for n, rec := range records {
		if n == 0 {
			continue
		}
		if len(rec) != 4 {
			return nil, fmt.Errorf("hit %s: occupancy row %d: want 4 fields, got %d", id, n, len(rec))
		}
		var idx [3]int
		for a := 0; a < 3; a++ {
			if idx[a], err = strconv.Atoi(rec[a]); err != nil {
				return nil, fmt.Errorf("hit %s: occupancy row %d: %w", id, n, err)
			}
		}
		count, err := strconv.ParseUint(rec[3], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("hit %s: occupancy row %d: %w", id, n, err)
		}
		if err := g.Set(idx[0], idx[1], idx[2], uint32(count)); err != nil {
			return nil, fmt.Errorf("hit %s: occupancy row %d: %w", id, n, err)
		}
	}
	return g, nil
}
