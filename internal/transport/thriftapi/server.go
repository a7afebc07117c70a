package thriftapi

import (
	"github.com/apache/thrift/lib/go/thrift"
	"github.com/rs/zerolog"

	"drone-dispatch/internal/auth"
	"drone-dispatch/internal/service"
)

// Server serves the Dispatch processor over framed binary transport.
type Server struct {
	server *thrift.TSimpleServer
	addr   string
	log    zerolog.Logger
}

func NewServer(addr string, svc *service.Service, authenticator *auth.Authenticator, log zerolog.Logger) (*Server, error) {
	socket, err := thrift.NewTServerSocket(addr)
	if err != nil {
		return nil, err
	}
	processor := NewProcessor(svc, authenticator, log)
	transportFactory := thrift.NewTFramedTransportFactoryConf(thrift.NewTTransportFactory(), &thrift.TConfiguration{})
	protocolFactory := thrift.NewTBinaryProtocolFactoryConf(&thrift.TConfiguration{})
	server := thrift.NewTSimpleServer4(processor, socket, transportFactory, protocolFactory)
	return &Server{server: server, addr: addr, log: log}, nil
}

func (s *Server) Serve() error {
	s.log.Info().Str("addr", s.addr).Msg("thrift listening")
	return s.server.Serve()
}

func (s *Server) Stop() {
	if err := s.server.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("thrift stop")
	}
}
