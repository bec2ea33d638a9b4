package main

import (
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/ggmlio/internal/loader"
	"github.com/born-ml/ggmlio/internal/serialization"
	"github.com/born-ml/ggmlio/internal/tensor"
)

type inspectOptions struct {
	recordSize string
	datatype   string
	dimension  string
	shape      string
	manifest   string
	record     string
	arena      string
	sha256     string
	show       int
}

type tensorReport struct {
	Index   int    `json:"index"`
	Extents []int  `json:"extents"`
	Bytes   int    `json:"bytes"`
	Data    string `json:"data"`
}

type inspectReport struct {
	File          string         `json:"file"`
	Size          int            `json:"size"`
	Compression   string         `json:"compression"`
	Checksum      string         `json:"sha256"`
	Record        string         `json:"record"`
	RecordSize    int            `json:"record_size"`
	Policy        string         `json:"policy"`
	Shape         string         `json:"shape"`
	Records       int            `json:"records"`
	ArenaUsed     int            `json:"arena_used"`
	ArenaCapacity int            `json:"arena_capacity"`
	Tensors       []tensorReport `json:"tensors,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func newInspectCmd(g *globalOptions) *cobra.Command {
	o := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <model>",
		Short: "Materialize every record of a model file and report the tensors",
		Long: `The inspect command reads a model file as a sequence of fixed-size
records, materializes each one into a tensor and reports the result. A clean
end of file is success; a truncated record is reported as corruption.

The policy comes either from flags or from a YAML manifest.

Example:
  ggmlio inspect model.bin --record-size 32 --datatype i8 --dimension D2 --shape 16,2
  ggmlio inspect model.bin.zst --record-size 4 --json
  ggmlio inspect model.bin --record-size 32 --manifest model.yaml --record ffn.w1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), g, o, args[0])
		},
	}

	cmd.Flags().StringVar(&o.recordSize, "record-size", "", "Size of one record (e.g. 32, 4KiB)")
	cmd.Flags().StringVar(&o.datatype, "datatype", "i8", "Tensor datatype: i8, i16, i32, f16, f32")
	cmd.Flags().StringVar(&o.dimension, "dimension", "D1", "Tensor dimension: D1, D2, D3")
	cmd.Flags().StringVar(&o.shape, "shape", "", "Comma-separated extents, auto for inferred (default all auto)")
	cmd.Flags().StringVar(&o.manifest, "manifest", "", "YAML manifest declaring the record policy")
	cmd.Flags().StringVar(&o.record, "record", "", "Record name to look up in the manifest")
	cmd.Flags().StringVar(&o.arena, "arena", "64MiB", "Arena capacity")
	cmd.Flags().StringVar(&o.sha256, "sha256", "", "Expected SHA-256 of the file")
	cmd.Flags().IntVar(&o.show, "show", 0, "Number of tensors to print")
	_ = cmd.MarkFlagRequired("record-size")

	return cmd
}

func runInspect(w io.Writer, g *globalOptions, o *inspectOptions, path string) error {
	recordSize, err := parseSize("record-size", o.recordSize)
	if err != nil {
		return err
	}
	capacity, err := parseSize("arena", o.arena)
	if err != nil {
		return err
	}

	name, policy, shape, err := o.policy()
	if err != nil {
		return err
	}

	recordType := reflect.ArrayOf(recordSize, reflect.TypeFor[uint8]())
	pipeline, err := loader.NewPipeline(recordType, policy, loader.WithLogger(g.log), loader.WithName(name))
	if err != nil {
		return err
	}

	g.printVerbose(w, "Opening model: %s\n", path)
	f, err := serialization.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sum, err := f.Checksum()
	if err != nil {
		return err
	}
	if o.sha256 != "" {
		want, err := serialization.ParseChecksum(o.sha256)
		if err != nil {
			return err
		}
		if err := sum.Verify(want); err != nil {
			return err
		}
	}

	stream, err := f.Stream()
	if err != nil {
		return err
	}
	defer stream.Close()

	arena := tensor.NewArena(capacity, tensor.WithArenaLogger(g.log))
	defer arena.Close()

	tensors, readErr := materializeAll(pipeline, arena, stream, shape)

	report := inspectReport{
		File:          path,
		Size:          f.Size(),
		Compression:   stream.Compression().String(),
		Checksum:      sum.String(),
		Record:        name,
		RecordSize:    recordSize,
		Policy:        policy.String(),
		Shape:         tensor.Shape{Dim: policy.Dimension, Extents: shape}.String(),
		Records:       len(tensors),
		ArenaUsed:     arena.UsedMem(),
		ArenaCapacity: arena.Capacity(),
	}
	for i, t := range tensors {
		if i >= o.show {
			break
		}
		report.Tensors = append(report.Tensors, describeTensor(i, t))
	}
	if readErr != nil {
		report.Error = readErr.Error()
	}

	if g.jsonOut {
		if err := printJSON(w, report); err != nil {
			return err
		}
	} else {
		printReport(w, g, &report)
	}

	if readErr != nil {
		return errors.Wrapf(readErr, "inspect %s", path)
	}
	return nil
}

// policy resolves the record name, policy and shape from the manifest or
// from the individual flags.
func (o *inspectOptions) policy() (string, loader.Policy, []tensor.Extent, error) {
	if o.manifest != "" {
		if o.record == "" {
			return "", loader.Policy{}, nil, errors.New("--record is required with --manifest")
		}
		m, err := loader.LoadManifestFile(o.manifest)
		if err != nil {
			return "", loader.Policy{}, nil, err
		}
		policy, shape, err := m.Lookup(o.record)
		return o.record, policy, shape, err
	}

	policy, err := loader.ParsePolicy(o.datatype, o.dimension)
	if err != nil {
		return "", loader.Policy{}, nil, err
	}
	if o.shape == "" {
		return "record", policy, policy.AutoShape(), nil
	}
	shape, err := parseShape(o.shape)
	if err != nil {
		return "", loader.Policy{}, nil, err
	}
	return "record", policy, shape, nil
}

func parseSize(flag, value string) (int, error) {
	if value == "" {
		return 0, errors.Errorf("--%s is required", flag)
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, errors.Wrapf(err, "--%s", flag)
	}
	if n == 0 || n > math.MaxInt32 {
		return 0, errors.Errorf("--%s %s is out of range", flag, value)
	}
	return int(n), nil
}

func parseShape(value string) ([]tensor.Extent, error) {
	parts := strings.Split(value, ",")
	shape := make([]tensor.Extent, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "auto" || p == "?" {
			shape[i] = tensor.Auto
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("--shape: extent %q is neither a positive integer nor auto", p)
		}
		shape[i] = tensor.Extent(n)
	}
	return shape, nil
}

// materializeAll runs the pipeline and turns arena exhaustion, which the
// arena reports by panicking, into an error naming the flag to raise. Any
// other panic is a bug and is re-raised.
func materializeAll(p *loader.Pipeline, a *tensor.Arena, r io.Reader, shape []tensor.Extent) (tensors []*tensor.Tensor, err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		cause, ok := v.(error)
		if !ok || !errors.Is(cause, tensor.ErrArenaExhausted) {
			panic(v)
		}
		err = errors.Wrapf(cause, "arena full after %s (%d tensors); raise --arena",
			humanize.IBytes(uint64(a.UsedMem())), a.Len())
	}()
	return p.ReadAll(a, r, shape)
}

func describeTensor(i int, t *tensor.Tensor) tensorReport {
	ext := t.Extents()
	return tensorReport{
		Index:   i,
		Extents: ext[:t.Dimension().Rank()],
		Bytes:   t.ByteSize(),
		Data:    t.String(),
	}
}

func printReport(w io.Writer, g *globalOptions, r *inspectReport) {
	g.printInfo(w, "\nModel Information:\n")
	g.printInfo(w, "  File: %s\n", r.File)
	g.printInfo(w, "  Size: %s\n", humanize.IBytes(uint64(r.Size)))
	g.printInfo(w, "  Compression: %s\n", r.Compression)
	g.printInfo(w, "  SHA-256: %s\n", r.Checksum)

	g.printInfo(w, "\nRecords:\n")
	g.printInfo(w, "  Record: %s (%s)\n", r.Record, humanize.IBytes(uint64(r.RecordSize)))
	g.printInfo(w, "  Policy: %s %s\n", r.Policy, r.Shape)
	g.printInfo(w, "  Materialized: %s\n", humanize.Comma(int64(r.Records)))
	g.printInfo(w, "  Arena: %s of %s\n", humanize.IBytes(uint64(r.ArenaUsed)), humanize.IBytes(uint64(r.ArenaCapacity)))

	for _, t := range r.Tensors {
		g.printInfo(w, "  [%d] %v %d bytes %s\n", t.Index, t.Extents, t.Bytes, t.Data)
	}

	if r.Error != "" {
		g.printInfo(w, "\nCorruption:\n  %s\n", r.Error)
	}
}
