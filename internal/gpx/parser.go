package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Parse reads a day document from r, preserving all extension bags.
func Parse(r io.Reader) (*DayFile, error) {
	decoder := xml.NewDecoder(r)

	var day DayFile
	if err := decoder.Decode(&day); err != nil {
		return nil, fmt.Errorf("failed to parse gpx: %w", err)
	}

	if day.XMLNS == "" {
		day.XMLNS = "http://www.topografix.com/GPX/1/1"
	}
	if day.Version == "" {
		day.Version = "1.1"
	}
	if day.Creator == "" {
		day.Creator = "life2gpx"
	}
	return &day, nil
}

// ParseFile reads and parses a day file from disk.
func ParseFile(filename string) (*DayFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Write serializes the whole document to w with an XML header and indentation.
func (d *DayFile) Write(w io.Writer) error {
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(d); err != nil {
		return fmt.Errorf("failed to encode gpx: %w", err)
	}
	return encoder.Flush()
}
