package flightio

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-bodkin/internal/logger"
)

// Server exposes a Registry over Arrow Flight. Tickets are tensor names;
// each DoGet streams one record with a single float32 column plus the
// shape and dtype in the schema metadata.
type Server struct {
	flight.BaseFlightServer
	reg *Registry
	srv flight.Server
}

func NewServer(reg *Registry) *Server {
	return &Server{reg: reg}
}

// Start binds addr (host:port, port 0 for ephemeral) and serves in the
// background.
func (s *Server) Start(addr string) error {
	srv := flight.NewServerWithMiddleware(nil)
	if err := srv.Init(addr); err != nil {
		return fmt.Errorf("flight server init: %w", err)
	}
	srv.RegisterFlightService(s)
	s.srv = srv
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Log.Error("flight server stopped", "error", err)
		}
	}()
	logger.Log.Info("flight server listening", "addr", srv.Addr().String())
	return nil
}

func (s *Server) Addr() string {
	return s.srv.Addr().String()
}

func (s *Server) Shutdown() {
	if s.srv != nil {
		s.srv.Shutdown()
	}
}

func tensorSchema(e Entry) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{"n", "c", "h", "w", "dtype"},
		[]string{
			strconv.Itoa(e.Shape.N),
			strconv.Itoa(e.Shape.C),
			strconv.Itoa(e.Shape.H),
			strconv.Itoa(e.Shape.W),
			e.DType.String(),
		},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: "elements", Type: arrow.PrimitiveTypes.Float32},
	}, &md)
}

// DoGet streams the named tensor to the caller.
func (s *Server) DoGet(tkt *flight.Ticket, fs flight.FlightService_DoGetServer) error {
	name := string(tkt.GetTicket())
	e, ok := s.reg.Get(name)
	if !ok {
		return fmt.Errorf("unknown tensor %q", name)
	}

	schema := tensorSchema(e)
	bld := array.NewFloat32Builder(memory.DefaultAllocator)
	defer bld.Release()
	bld.AppendValues(e.Data, nil)
	col := bld.NewFloat32Array()
	defer col.Release()

	rec := array.NewRecord(schema, []arrow.Array{col}, int64(len(e.Data)))
	defer rec.Release()

	w := flight.NewRecordWriter(fs, ipc.WithSchema(schema))
	defer w.Close()
	return w.Write(rec)
}

// ListFlights enumerates the published tensor names.
func (s *Server) ListFlights(_ *flight.Criteria, fs flight.FlightService_ListFlightsServer) error {
	for _, name := range s.reg.Names() {
		e, ok := s.reg.Get(name)
		if !ok {
			continue
		}
		info := &flight.FlightInfo{
			Schema: flight.SerializeSchema(tensorSchema(e), memory.DefaultAllocator),
			FlightDescriptor: &flight.FlightDescriptor{
				Type: flight.DescriptorPATH,
				Path: []string{name},
			},
			TotalRecords: 1,
			TotalBytes:   int64(len(e.Data) * 4),
		}
		if err := fs.Send(info); err != nil {
			return err
		}
	}
	return nil
}
