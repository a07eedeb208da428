// Package portmap implements the minimal RFC 1057/1833 rpcbind service the
// scope needs: PMAPPROC_GETPORT for the VXI-11 Core program (395183), on
// both TCP and UDP port 111. No other program or procedure is answered.
package portmap

import (
	"fmt"
	"log"
	"net"

	"github.com/bstrobel/sds1004x-bode/portcell"
	"github.com/bstrobel/sds1004x-bode/rpcwire"
)

// vxi11CoreProgram is the ONC-RPC program number for VXI-11 Core.
const vxi11CoreProgram = 395183

// getPortProcedure is PMAPPROC_GETPORT.
const getPortProcedure = 3

// Byte offsets of the fields this service actually looks at, counting from
// the start of the RPC call body (XID at 0x00).
const (
	procedureOffset = 0x14
	programOffset   = 0x28
)

// Server answers rpcbind GETPORT requests for the VXI-11 Core program by
// reading the currently advertised port from a portcell.Cell.
type Server struct {
	Host string
	Port int // rpcbind port; no default here (awgserver's config defaults it to 111)
	Cell *portcell.Cell
}

// ListenAndServe binds the UDP and TCP listeners and serves until done is
// closed. A bind failure on either transport is fatal and returned
// immediately; the caller is expected to treat it as a process-exit error.
func (s *Server) ListenAndServe(done <-chan struct{}) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("portmap: resolve UDP %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("portmap: cannot open UDP port %d on %s for listening: %w", s.Port, s.Host, err)
	}

	tcpLn, err := net.Listen("tcp", addr)
	if err != nil {
		udpConn.Close()
		return fmt.Errorf("portmap: cannot open TCP port %d on %s for listening: %w", s.Port, s.Host, err)
	}

	log.Printf("Portmapper: Listening to UDP and TCP ports on %s", addr)

	go s.serveUDP(udpConn, done)
	go s.serveTCP(tcpLn, done)

	<-done
	udpConn.Close()
	tcpLn.Close()
	return nil
}

func (s *Server) serveUDP(conn *net.UDPConn, done <-chan struct{}) {
	buf := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
				return
			default:
				log.Printf("UDPPortmapper: read error: %v", err)
				continue
			}
		}
		req := buf[:n]
		log.Printf("UDPPortmapper: incoming request from %s", addr)

		resp, ok := s.reply(req, false)
		if !ok {
			continue
		}
		if _, err := conn.WriteToUDP(resp, addr); err != nil {
			log.Printf("UDPPortmapper: write error: %v", err)
		}
	}
}

func (s *Server) serveTCP(ln net.Listener, done <-chan struct{}) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-done:
				return
			default:
				log.Printf("TCPPortmapper: accept error: %v", err)
				continue
			}
		}
		s.handleTCP(conn)
	}
}

func (s *Server) handleTCP(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	if err != nil || n <= 4 {
		return
	}
	// Strip the 4-byte record-marking header; what remains starts at the
	// XID, same as a UDP datagram.
	req := buf[4:n]
	log.Printf("TCPPortmapper: incoming request from %s", conn.RemoteAddr())

	resp, ok := s.reply(req, true)
	if !ok {
		return
	}
	if _, err := conn.Write(resp); err != nil {
		log.Printf("TCPPortmapper: write error: %v", err)
	}
}

// reply validates req (XID-first, any record-marking header already
// stripped) as a GETPORT call for the VXI-11 Core program and, if valid,
// returns the RPC reply carrying the current VXI-11 port, framed when
// framed is true. ok is false when the request should be silently ignored.
func (s *Server) reply(req []byte, framed bool) (resp []byte, ok bool) {
	if len(req) < programOffset+4 {
		return nil, false
	}
	if rpcwire.Uint32(req[procedureOffset:procedureOffset+4]) != getPortProcedure {
		return nil, false
	}
	if rpcwire.Uint32(req[programOffset:programOffset+4]) != vxi11CoreProgram {
		return nil, false
	}

	port := s.Cell.Load()
	log.Printf("Portmapper: sending VXI-11 port %d", port)
	xid := rpcwire.XID(req)
	body := rpcwire.PutUint32(uint32(port))
	return rpcwire.Reply(xid, body, framed), true
}
