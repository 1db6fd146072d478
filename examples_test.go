package tsaclient

import (
	"fmt"
	"strings"
)

// ExampleCreateRequest demonstrates how to create a new time-stamping request
// for an io.Reader.
func ExampleCreateRequest() {
	_, err := CreateRequest(strings.NewReader("Content to be time-stamped"), nil)
	if err != nil {
		panic(err)
	}
}

// ExampleCreateRequest_customHashingAlgorithm demonstrates how to create a new
// time-stamping request with options
func ExampleCreateRequest_customHashingAlgorithm() {
	_, err := CreateRequest(
		strings.NewReader("Content to be time-stamped"),
		&RequestOptions{
			Algorithm: SHA512,
		})
	if err != nil {
		panic(err)
	}
}

// ExampleParseRequest demonstrates how to parse a raw der time-stamping request
func ExampleParseRequest() {
	// CreateRequest returns the request in der bytes
	createdRequest, err := CreateRequest(strings.NewReader("Content to be time-stamped"), nil)
	if err != nil {
		panic(err)
	}

	// ParseRequest parses a request in der bytes
	parsedRequest, err := ParseRequest(createdRequest)
	if err != nil {
		panic(err)
	}

	fmt.Printf("%x\n", parsedRequest.HashedMessage)
	// Output: 51a3620a3b62ffaff41a434e932223b31bc69e86490c365fa1186033904f1132
}

// ExampleDigest shows the message imprint of a short document.
func ExampleDigest() {
	d, err := Digest([]byte("Hello World!"), SHA256)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%x\n", d)
	// Output: 7f83b1657ff1fc53b92dc18148a1d65dfc2d4b1fa3d677284addd200126d9069
}
