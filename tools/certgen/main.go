// Package main generates a development CA and a server certificate for the
// portal, writing them under the "certs" directory. An existing CA is reused
// so clients that already trust it keep working.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/atinyakov/staffonic/internal/certgen"
)

func main() {
	dir := pflag.String("dir", "certs", "output directory")
	hosts := pflag.StringSlice("hosts", []string{"localhost", "127.0.0.1"}, "server certificate hosts")
	pflag.Parse()

	if err := run(*dir, *hosts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Certificates generated into ./%s\n", *dir)
}

func run(dir string, hosts []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	caCertPath := filepath.Join(dir, "ca.crt")
	caKeyPath := filepath.Join(dir, "ca.key")

	ca, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	if errors.Is(err, os.ErrNotExist) {
		cert, key, err := certgen.NewCA("Staffonic Dev CA", 10*365*24*time.Hour)
		if err != nil {
			return err
		}
		certPEM, keyPEM, err := certgen.EncodeCA(cert, key)
		if err != nil {
			return err
		}
		if err := writePair(caCertPath, caKeyPath, certPEM, keyPEM); err != nil {
			return err
		}
		ca, caKey = cert, key
	} else if err != nil {
		return err
	}

	certPEM, keyPEM, err := certgen.GenerateServerCertificate(hosts, ca, caKey)
	if err != nil {
		return err
	}
	return writePair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"), certPEM, keyPEM)
}

func writePair(certPath, keyPath string, certPEM, keyPEM []byte) error {
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", certPath, err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", keyPath, err)
	}
	return nil
}
