// Package vxi11 implements the four VXI-11 Core (program 395183)
// procedures the scope actually calls: CREATE_LINK, DEVICE_WRITE,
// DEVICE_READ, DESTROY_LINK. Exactly one client is served at a time; every
// session ends on a fresh TCP port because certain scope firmwares
// (SDS800X-HD) refuse to reconnect to a port they've already used.
package vxi11

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/bstrobel/sds1004x-bode/portcell"
	"github.com/bstrobel/sds1004x-bode/rpcwire"
	"github.com/bstrobel/sds1004x-bode/scpi"
)

const (
	coreProgram = 395183

	createLink  = 10
	deviceWrite = 11
	deviceRead  = 12
	destroyLink = 23
)

// Byte offsets within a request, counting from the XID (record-marking
// header, if any, already stripped).
const (
	programOffset   = 0x0C
	procedureOffset = 0x14
	clientIDLenOff  = 0x34 // CREATE_LINK only
	writeLenOff     = 0x38 // DEVICE_WRITE only
)

const maxRecvSize = 0x00800000

// idString is the canned Siglent identity returned for every DEVICE_READ.
// It MUST begin with "SDG" or the scope won't treat the peer as a genuine
// Siglent AWG.
const idString = "IDN-SGLT-PRI SDG0000X"

// Server runs the VXI-11 Core session loop on a rotating TCP port.
type Server struct {
	Host string
	Cell *portcell.Cell
	SCPI *scpi.Parser

	mu sync.Mutex
	ln net.Listener // current listener, guarded so Serve's shutdown watcher can close it safely
}

// Serve binds the listener on the cell's current port and runs sessions
// back to back until done is closed.
func (s *Server) Serve(done <-chan struct{}) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.setListener(ln)

	go func() {
		<-done
		s.closeListener()
	}()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		s.runSession(ln)
		ln.Close()

		select {
		case <-done:
			return nil
		default:
		}

		port := s.Cell.Advance()
		log.Printf("VXI-11: moving to TCP port %d", port)

		ln, err = s.listen()
		if err != nil {
			return err
		}
		s.setListener(ln)
	}
}

func (s *Server) setListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ln = ln
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		s.ln.Close()
	}
}

func (s *Server) listen() (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Cell.Load())
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("vxi11: cannot open TCP port %d on %s for listening: %w", s.Cell.Load(), s.Host, err)
	}
	log.Printf("VXI-11: listening on TCP %s", addr)
	return ln, nil
}

// runSession accepts exactly one connection and serves VXI-11 requests on
// it until DESTROY_LINK, an unknown procedure, a non-VXI-11 program, or
// connection close.
func (s *Server) runSession(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	buf := make([]byte, 255)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}

		_, _, req := rpcwire.StripFrame(buf[:n])
		if len(req) < procedureOffset+4 {
			return
		}

		if rpcwire.Uint32(req[programOffset:programOffset+4]) != coreProgram {
			log.Printf("VXI-11: request from an unknown program, aborting session")
			return
		}
		procedure := rpcwire.Uint32(req[procedureOffset : procedureOffset+4])
		xid := rpcwire.XID(req)

		body, again := s.handle(procedure, req)
		if body != nil {
			if _, err := conn.Write(rpcwire.Reply(xid, body, true)); err != nil {
				log.Printf("VXI-11: write error: %v", err)
				return
			}
		}
		if !again {
			return
		}
	}
}

// handle dispatches a single VXI-11 procedure and returns the response
// body to send (nil to send nothing) and whether the session continues.
func (s *Server) handle(procedure uint32, req []byte) (body []byte, again bool) {
	switch procedure {
	case createLink:
		log.Printf("VXI-11 CREATE_LINK")
		return createLinkResponse(), true

	case deviceWrite:
		cmd, cmdLen := parseDeviceWrite(req)
		log.Printf("VXI-11 DEVICE_WRITE, SCPI command: %s", cmd)
		s.SCPI.Parse(cmd)
		return deviceWriteResponse(cmdLen), true

	case deviceRead:
		log.Printf("VXI-11 DEVICE_READ")
		return deviceReadResponse(), true

	case destroyLink:
		log.Printf("VXI-11 DESTROY_LINK")
		return destroyLinkResponse(), false

	default:
		log.Printf("VXI-11: unknown procedure %d, aborting session", procedure)
		return nil, false
	}
}

func parseDeviceWrite(req []byte) (cmd string, length uint32) {
	if len(req) < writeLenOff+4 {
		return "", 0
	}
	length = rpcwire.Uint32(req[writeLenOff : writeLenOff+4])
	start := writeLenOff + 4
	end := start + int(length)
	if end > len(req) {
		end = len(req)
	}
	return trimCommand(req[start:end]), length
}

// trimCommand strips surrounding whitespace from the raw SCPI payload. The
// scope's terminators (CR/LF) land here and must not reach the parser.
func trimCommand(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t' || s[0] == '\r' || s[0] == '\n') {
		s = s[1:]
	}
	for len(s) > 0 {
		c := s[len(s)-1]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == 0 {
			s = s[:len(s)-1]
			continue
		}
		break
	}
	return s
}

func createLinkResponse() []byte {
	body := make([]byte, 0, 12)
	body = append(body, rpcwire.PutUint32(0)...)           // error: no error
	body = append(body, rpcwire.PutUint32(0)...)           // link id: 0
	body = append(body, rpcwire.PutUint32(0)...)           // abort port: 0
	body = append(body, rpcwire.PutUint32(maxRecvSize)...) // max receive size
	return body
}

func deviceWriteResponse(cmdLen uint32) []byte {
	body := make([]byte, 0, 8)
	body = append(body, rpcwire.PutUint32(0)...) // error: no error
	body = append(body, rpcwire.PutUint32(cmdLen)...)
	return body
}

const reasonEnd = 4

func deviceReadResponse() []byte {
	id := []byte(idString)
	idLen := len(id) + 1

	body := make([]byte, 0, 8+4+idLen+3)
	body = append(body, rpcwire.PutUint32(0)...)        // error: no error
	body = append(body, rpcwire.PutUint32(reasonEnd)...) // reason: END
	body = append(body, rpcwire.PutUint32(uint32(idLen))...)
	body = append(body, id...)
	body = append(body, 0x0A, 0x00, 0x00) // trailing \n and fill bytes
	return body
}

func destroyLinkResponse() []byte {
	return rpcwire.PutUint32(0) // error: no error
}
