// Package pcap turns offline capture files into the traffic records the
// analysis core consumes.
package pcap

import (
	"errors"
	"fmt"
	"io"
	"os"

	"NetSage/internal/model"

	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"
)

// Reader streams records from a pcap file.
type Reader struct {
	file   *os.File
	reader *pcapgo.Reader
	logger *zap.Logger
}

// NewReader opens the capture file at the given path.
func NewReader(filePath string, logger *zap.Logger) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %q: %w", filePath, err)
	}
	reader, err := pcapgo.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read pcap header of %q: %w", filePath, err)
	}
	return &Reader{file: file, reader: reader, logger: logger}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.file.Close()
}

// ReadRecords reads the whole file, sending each parsed record to out,
// and closes the channel when done. Packets the parser cannot interpret
// are logged and skipped; corrupt captures end the stream early.
func (r *Reader) ReadRecords(out chan<- *model.Record) {
	defer close(out)

	for {
		data, ci, err := r.reader.ReadPacketData()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Warn("error reading packet, stopping", zap.Error(err))
			}
			return
		}

		record, err := Parse(data, ci)
		if err != nil {
			// Unsupported packet types or corrupt data; keep reading.
			r.logger.Debug("skipping packet", zap.Error(err))
			continue
		}
		out <- record
	}
}

// ReadAll loads every parseable record from a capture file into memory.
func ReadAll(filePath string, logger *zap.Logger) ([]*model.Record, error) {
	reader, err := NewReader(filePath, logger)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	out := make(chan *model.Record, 1024)
	go reader.ReadRecords(out)

	var records []*model.Record
	for record := range out {
		records = append(records, record)
	}
	return records, nil
}
