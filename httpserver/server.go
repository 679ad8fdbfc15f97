package httpserver

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"chadserv/logger"
)

// Handler processes one request. A returned error (or a panic) is
// converted at the connection boundary into a 500 response carrying the
// message; the connection still gets a well-formed reply.
type Handler func(*Request, *Response) error

// Server is a minimal HTTP/1.1 server: exact-match routing, one
// goroutine per accepted connection, no keep-alive — every response
// closes its socket.
type Server struct {
	port     int
	routes   map[string]map[string]Handler
	running  atomic.Bool
	listener net.Listener
	wg       sync.WaitGroup
}

func New(port int) *Server {
	return &Server{
		port:   port,
		routes: make(map[string]map[string]Handler),
	}
}

// AddRoute registers a handler for an exact (method, path) pair.
// Registering the same pair again silently replaces the old handler.
// The route table is built at startup and must not be mutated while the
// server is accepting connections.
func (s *Server) AddRoute(method, path string, handler Handler) {
	if s.routes[method] == nil {
		s.routes[method] = make(map[string]Handler)
	}
	s.routes[method][path] = handler
	logger.Debugf("added route: %s %s", method, path)
}

// Start binds the listening socket and begins accepting connections on
// a dedicated loop. Returns false if the bind fails or the server is
// already running.
func (s *Server) Start() bool {
	if s.running.Load() {
		logger.Warn("server is already running")
		return false
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		logger.Errorf("failed to start server: %v", err)
		return false
	}

	s.listener = ln
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	logger.Infof("server started on port %d", s.Port())
	return true
}

// Stop closes the listener and joins the accept loop and every
// connection goroutine. Idempotent and safe to call when not running.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	logger.Info("stopping server")
	s.listener.Close()
	s.wg.Wait()
	logger.Info("server stopped")
}

// IsRunning is a cheap state check for a caller's poll loop.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Port reports the actual bound port, which differs from the requested
// one when the server was asked for port 0.
func (s *Server) Port() int {
	if s.listener == nil {
		return s.port
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				logger.Errorf("accept error: %v", err)
				continue
			}
			return
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	req, err := readRequest(bufio.NewReader(conn))
	if err != nil {
		// Transport-level read error: this connection only.
		logger.Errorf("error reading request: %v", err)
		return
	}

	res := s.dispatch(req)

	if _, err := conn.Write(res.serialize()); err != nil {
		logger.Errorf("error writing response: %v", err)
	}
}

// dispatch routes the request and absorbs handler faults into a 500.
func (s *Server) dispatch(req *Request) (res *Response) {
	res = newResponse()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic in request handler: %v", r)
			res = newResponse()
			res.SetStatus(500, "Internal Server Error")
			res.SetText(fmt.Sprintf("Internal server error: %v", r))
		}
	}()

	handler, ok := s.routes[req.Method][req.Path]
	if !ok {
		res.SetStatus(404, "Not Found")
		res.SetText("Resource not found: " + req.Path)
		return res
	}

	if err := handler(req, res); err != nil {
		logger.Errorf("error in request handler for %s %s: %v", req.Method, req.Path, err)
		res = newResponse()
		res.SetStatus(500, "Internal Server Error")
		res.SetText("Internal server error: " + err.Error())
	}
	return res
}
