package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

const (
	indexRequestLine = "GET / HTTP/1.1"

	statusOK       = "HTTP/1.1 200 OK"
	statusNotFound = "HTTP/1.1 404 NOT FOUND"

	indexFile    = "hello.html"
	notFoundFile = "404.html"
)

// handleConnection reads one request from the connection, writes the
// matching page, and closes the connection.
func (l *Listener) handleConnection(conn net.Conn) {
	defer conn.Close()

	if l.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}

	request, err := readRequest(conn)
	if err != nil {
		grip.Debug(message.WrapError(err, message.Fields{
			"message": "problem reading request",
			"remote":  conn.RemoteAddr().String(),
		}))
	}

	status, name := route(request)
	response := buildResponse(status, l.readPage(name))

	if _, err := io.WriteString(conn, response); err != nil {
		grip.Warning(message.WrapError(err, message.Fields{
			"message": "problem writing response",
			"remote":  conn.RemoteAddr().String(),
			"status":  status,
		}))
	}
}

// readRequest returns the request's header lines, up to but not
// including the first blank line.
func readRequest(r io.Reader) ([]string, error) {
	reader := bufio.NewReader(r)
	lines := []string{}

	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == io.EOF {
				err = nil
			}
			return lines, err
		}

		lines = append(lines, line)
		if err != nil {
			if err == io.EOF {
				err = nil
			}
			return lines, err
		}
	}
}

func route(request []string) (string, string) {
	if len(request) > 0 && request[0] == indexRequestLine {
		return statusOK, indexFile
	}

	return statusNotFound, notFoundFile
}

func (l *Listener) readPage(name string) string {
	data, err := os.ReadFile(filepath.Join(l.root, name))
	if err != nil {
		grip.Debug(message.WrapError(err, message.Fields{
			"message": "serving empty page",
			"page":    name,
		}))
		return ""
	}

	return string(data)
}

func buildResponse(status, contents string) string {
	return fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n%s", status, len(contents), contents)
}
