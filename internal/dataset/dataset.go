// Package dataset reads and writes occupancy survey data.
//
// Single-season data is accepted as a wide detection history
//
//	site,s1,s2,...,sK
//	A,0,1,0
//
// or as summarised counts with a fixed header
//
//	site,detections,surveys
//	A,1,3
//
// Multi-season data is a long table with one row per survey
//
//	site,season,survey,detected
//	A,1,1,0
//
// with 1-based season and survey indices. JSON files use the field names of
// occupancy.SingleSeason and occupancy.MultiSeason.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/occupancy/internal/occupancy"
)

// ErrFormat indicates a file that is not in one of the supported layouts.
var ErrFormat = errors.New("unsupported dataset format")

const maxFileSize = 64 * 1024 * 1024

var countsHeader = []string{"site", "detections", "surveys"}
var longHeader = []string{"site", "season", "survey", "detected"}

// LoadSingleSeason reads a .csv or .json single-season dataset.
func LoadSingleSeason(path string) (occupancy.SingleSeason, []string, error) {
	f, ext, err := open(path)
	if err != nil {
		return occupancy.SingleSeason{}, nil, err
	}
	defer f.Close()

	if ext == ".json" {
		d, err := ReadSingleSeasonJSON(f)
		return d, nil, err
	}
	return ReadSingleSeasonCSV(f)
}

// LoadMultiSeason reads a .csv or .json multi-season dataset.
func LoadMultiSeason(path string) (occupancy.MultiSeason, []string, error) {
	f, ext, err := open(path)
	if err != nil {
		return occupancy.MultiSeason{}, nil, err
	}
	defer f.Close()

	if ext == ".json" {
		d, err := ReadMultiSeasonJSON(f)
		return d, nil, err
	}
	return ReadMultiSeasonCSV(f)
}

func open(path string) (*os.File, string, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".csv" && ext != ".json" {
		return nil, "", fmt.Errorf("%w: dataset must be .csv or .json, got %q", ErrFormat, ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat dataset: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, "", fmt.Errorf("dataset too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open dataset: %w", err)
	}
	return f, ext, nil
}

// ReadSingleSeasonCSV parses a wide detection history or a counts table.
func ReadSingleSeasonCSV(r io.Reader) (occupancy.SingleSeason, []string, error) {
	rows, err := readAll(r)
	if err != nil {
		return occupancy.SingleSeason{}, nil, err
	}
	header := normalise(rows[0])
	body := rows[1:]
	if len(body) == 0 {
		return occupancy.SingleSeason{}, nil, fmt.Errorf("%w: no data rows", occupancy.ErrShapeMismatch)
	}

	d := occupancy.SingleSeason{N: len(body), Y: make([]int, len(body))}
	sites := make([]string, len(body))

	if equalHeader(header, countsHeader) {
		for i, row := range body {
			sites[i] = row[0]
			y, err := parseInt(row[1], i+2, "detections")
			if err != nil {
				return occupancy.SingleSeason{}, nil, err
			}
			k, err := parseInt(row[2], i+2, "surveys")
			if err != nil {
				return occupancy.SingleSeason{}, nil, err
			}
			if i == 0 {
				d.K = k
			} else if k != d.K {
				return occupancy.SingleSeason{}, nil, fmt.Errorf("%w: line %d has %d surveys, expected %d", occupancy.ErrShapeMismatch, i+2, k, d.K)
			}
			d.Y[i] = y
		}
	} else {
		if len(header) < 2 || header[0] != "site" {
			return occupancy.SingleSeason{}, nil, fmt.Errorf("%w: header must start with site and list at least one survey", ErrFormat)
		}
		d.K = len(header) - 1
		for i, row := range body {
			sites[i] = row[0]
			for j, cell := range row[1:] {
				v, err := parseInt(cell, i+2, header[j+1])
				if err != nil {
					return occupancy.SingleSeason{}, nil, err
				}
				if v != 0 && v != 1 {
					return occupancy.SingleSeason{}, nil, fmt.Errorf("%w: line %d column %s is %d, want 0 or 1", occupancy.ErrInvalidObservation, i+2, header[j+1], v)
				}
				d.Y[i] += v
			}
		}
	}

	if err := d.Validate(); err != nil {
		return occupancy.SingleSeason{}, nil, err
	}
	return d, sites, nil
}

// ReadMultiSeasonCSV parses a long site,season,survey,detected table. Every
// site must have a row for every season and survey.
func ReadMultiSeasonCSV(r io.Reader) (occupancy.MultiSeason, []string, error) {
	rows, err := readAll(r)
	if err != nil {
		return occupancy.MultiSeason{}, nil, err
	}
	if !equalHeader(normalise(rows[0]), longHeader) {
		return occupancy.MultiSeason{}, nil, fmt.Errorf("%w: header must be %s", ErrFormat, strings.Join(longHeader, ","))
	}

	type cell struct{ season, survey, detected int }
	type key struct{ site, season, survey int }
	index := map[string]int{}
	seen := map[key]bool{}
	var sites []string
	var cells [][]cell
	maxSeason, maxSurvey := 0, 0

	for i, row := range rows[1:] {
		line := i + 2
		season, err := parseInt(row[1], line, "season")
		if err != nil {
			return occupancy.MultiSeason{}, nil, err
		}
		survey, err := parseInt(row[2], line, "survey")
		if err != nil {
			return occupancy.MultiSeason{}, nil, err
		}
		detected, err := parseInt(row[3], line, "detected")
		if err != nil {
			return occupancy.MultiSeason{}, nil, err
		}
		if season < 1 || survey < 1 {
			return occupancy.MultiSeason{}, nil, fmt.Errorf("%w: line %d: season and survey are 1-based", ErrFormat, line)
		}
		idx, ok := index[row[0]]
		if !ok {
			idx = len(sites)
			index[row[0]] = idx
			sites = append(sites, row[0])
			cells = append(cells, nil)
		}
		k := key{idx, season, survey}
		if seen[k] {
			return occupancy.MultiSeason{}, nil, fmt.Errorf("%w: line %d: site %s season %d survey %d appears twice", ErrFormat, line, row[0], season, survey)
		}
		seen[k] = true
		cells[idx] = append(cells[idx], cell{season, survey, detected})
		maxSeason = max(maxSeason, season)
		maxSurvey = max(maxSurvey, survey)
	}
	if len(sites) == 0 {
		return occupancy.MultiSeason{}, nil, fmt.Errorf("%w: no data rows", occupancy.ErrShapeMismatch)
	}

	// Every site needs one row per (season, survey), so the array can never
	// be larger than the file. Check before allocating it.
	nrows := len(rows) - 1
	if maxSeason > nrows || maxSurvey > nrows || maxSeason*maxSurvey > nrows/len(sites) {
		return occupancy.MultiSeason{}, nil, fmt.Errorf("%w: %d rows cannot fill %d sites x %d seasons x %d surveys",
			occupancy.ErrShapeMismatch, nrows, len(sites), maxSeason, maxSurvey)
	}
	for i, siteCells := range cells {
		if len(siteCells) != maxSeason*maxSurvey {
			return occupancy.MultiSeason{}, nil, fmt.Errorf("%w: site %s has %d surveys, expected %d", occupancy.ErrShapeMismatch, sites[i], len(siteCells), maxSeason*maxSurvey)
		}
	}

	d := occupancy.MultiSeason{N: len(sites), T: maxSeason, R: maxSurvey, Y: make([][][]int, len(sites))}
	for i, siteCells := range cells {
		d.Y[i] = make([][]int, maxSeason)
		for t := range d.Y[i] {
			d.Y[i][t] = make([]int, maxSurvey)
		}
		for _, c := range siteCells {
			d.Y[i][c.season-1][c.survey-1] = c.detected
		}
	}

	if err := d.Validate(); err != nil {
		return occupancy.MultiSeason{}, nil, err
	}
	return d, sites, nil
}

// ReadSingleSeasonJSON decodes and validates a single-season dataset.
func ReadSingleSeasonJSON(r io.Reader) (occupancy.SingleSeason, error) {
	var d occupancy.SingleSeason
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return occupancy.SingleSeason{}, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := d.Validate(); err != nil {
		return occupancy.SingleSeason{}, err
	}
	return d, nil
}

// ReadMultiSeasonJSON decodes and validates a multi-season dataset.
func ReadMultiSeasonJSON(r io.Reader) (occupancy.MultiSeason, error) {
	var d occupancy.MultiSeason
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return occupancy.MultiSeason{}, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := d.Validate(); err != nil {
		return occupancy.MultiSeason{}, err
	}
	return d, nil
}

// WriteSingleSeasonCSV writes d as a site,detections,surveys table. Sites
// default to 1-based indices when names is nil.
func WriteSingleSeasonCSV(w io.Writer, d occupancy.SingleSeason, names []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(countsHeader); err != nil {
		return err
	}
	for i, y := range d.Y {
		row := []string{siteName(names, i), strconv.Itoa(y), strconv.Itoa(d.K)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMultiSeasonCSV writes d in the long site,season,survey,detected layout.
func WriteMultiSeasonCSV(w io.Writer, d occupancy.MultiSeason, names []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(longHeader); err != nil {
		return err
	}
	for i, unit := range d.Y {
		site := siteName(names, i)
		for t, surveys := range unit {
			for r, v := range surveys {
				row := []string{site, strconv.Itoa(t + 1), strconv.Itoa(r + 1), strconv.Itoa(v)}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}
	return rows, nil
}

func normalise(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func parseInt(s string, line int, column string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: line %d column %s: invalid int %q", ErrFormat, line, column, s)
	}
	return v, nil
}

func siteName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return strconv.Itoa(i + 1)
}
