package endpointmanager_test

import (
	"fmt"
	"net"
)

func dialTCP(port int) (net.Conn, error) {
	return net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
}
