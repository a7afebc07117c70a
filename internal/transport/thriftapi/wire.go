package thriftapi

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
)

// readStruct walks the fields of one struct and hands each to fn. Fields fn
// does not consume (ok == false) are skipped.
func readStruct(ctx context.Context, in thrift.TProtocol, fn func(id int16, t thrift.TType) (ok bool, err error)) error {
	if _, err := in.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, fieldID, err := in.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		ok, err := fn(fieldID, fieldType)
		if err != nil {
			return err
		}
		if !ok {
			if err := in.Skip(ctx, fieldType); err != nil {
				return err
			}
		}
		if err := in.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return in.ReadStructEnd(ctx)
}

// readArgs reads a `<Method>_args { 1: Request request }` envelope and the end
// of the call message.
func readArgs(ctx context.Context, in thrift.TProtocol, fn func(id int16, t thrift.TType) (bool, error)) error {
	err := readStruct(ctx, in, func(id int16, t thrift.TType) (bool, error) {
		if id != 1 || t != thrift.STRUCT {
			return false, nil
		}
		return true, readStruct(ctx, in, fn)
	})
	if err != nil {
		return err
	}
	return in.ReadMessageEnd(ctx)
}

// structWriter writes one struct and keeps the first error.
type structWriter struct {
	ctx context.Context
	out thrift.TProtocol
	err error
}

func newStructWriter(ctx context.Context, out thrift.TProtocol, name string) *structWriter {
	return &structWriter{ctx: ctx, out: out, err: out.WriteStructBegin(ctx, name)}
}

func (w *structWriter) field(name string, t thrift.TType, id int16, write func() error) {
	if w.err != nil {
		return
	}
	if w.err = w.out.WriteFieldBegin(w.ctx, name, t, id); w.err != nil {
		return
	}
	if w.err = write(); w.err != nil {
		return
	}
	w.err = w.out.WriteFieldEnd(w.ctx)
}

func (w *structWriter) str(id int16, name, v string) {
	w.field(name, thrift.STRING, id, func() error { return w.out.WriteString(w.ctx, v) })
}

func (w *structWriter) double(id int16, name string, v float64) {
	w.field(name, thrift.DOUBLE, id, func() error { return w.out.WriteDouble(w.ctx, v) })
}

func (w *structWriter) i64(id int16, name string, v int64) {
	w.field(name, thrift.I64, id, func() error { return w.out.WriteI64(w.ctx, v) })
}

func (w *structWriter) i32(id int16, name string, v int32) {
	w.field(name, thrift.I32, id, func() error { return w.out.WriteI32(w.ctx, v) })
}

func (w *structWriter) boolean(id int16, name string, v bool) {
	w.field(name, thrift.BOOL, id, func() error { return w.out.WriteBool(w.ctx, v) })
}

func (w *structWriter) strs(id int16, name string, vs []string) {
	w.field(name, thrift.LIST, id, func() error {
		if err := w.out.WriteListBegin(w.ctx, thrift.STRING, len(vs)); err != nil {
			return err
		}
		for _, v := range vs {
			if err := w.out.WriteString(w.ctx, v); err != nil {
				return err
			}
		}
		return w.out.WriteListEnd(w.ctx)
	})
}

func (w *structWriter) nested(id int16, name string, write func(ctx context.Context, out thrift.TProtocol) error) {
	w.field(name, thrift.STRUCT, id, func() error { return write(w.ctx, w.out) })
}

// structs writes a list of structs, one write call per element.
func (w *structWriter) structs(id int16, name string, n int, write func(i int, ctx context.Context, out thrift.TProtocol) error) {
	w.field(name, thrift.LIST, id, func() error {
		if err := w.out.WriteListBegin(w.ctx, thrift.STRUCT, n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := write(i, w.ctx, w.out); err != nil {
				return err
			}
		}
		return w.out.WriteListEnd(w.ctx)
	})
}

func (w *structWriter) close() error {
	if w.err != nil {
		return w.err
	}
	if err := w.out.WriteFieldStop(w.ctx); err != nil {
		return err
	}
	return w.out.WriteStructEnd(w.ctx)
}

func writePoint(x, y float64) func(ctx context.Context, out thrift.TProtocol) error {
	return func(ctx context.Context, out thrift.TProtocol) error {
		w := newStructWriter(ctx, out, "Point")
		w.double(1, "x", x)
		w.double(2, "y", y)
		return w.close()
	}
}
