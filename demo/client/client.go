// Command client sends a keep-alive GET and then a closing GET over one connection and prints
// both responses.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8848", "server address")
	path := flag.String("path", "/index.html", "path to request")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		panic(fmt.Errorf("dial error, err:%v", err))
	}
	log.Println("conn success")
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("[error] close error, %v\n", err)
		}
	}()

	rd := bufio.NewReader(conn)
	for _, connection := range []string{"keep-alive", "close"} {
		req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: %s\r\n\r\n", *path, *addr, connection)
		if _, err = conn.Write([]byte(req)); err != nil {
			log.Fatalf("[error] write error, %v\n", err)
		}
		log.Printf("request sent, connection:[%s]\n", connection)

		resp, err := http.ReadResponse(rd, nil)
		if err != nil {
			log.Fatalf("[error] read response error, %v\n", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Fatalf("[error] read body error, %v\n", err)
		}
		log.Printf("response: %s, %d bytes, close:[%v]\n%s\n",
			resp.Status, len(body), resp.Close, body)
	}

	// 服务端应在第二个响应后关闭连接
	if _, err = rd.ReadByte(); err == io.EOF {
		log.Println("server closed the connection")
	} else {
		log.Printf("[error] expected EOF, got %v\n", err)
	}
}
