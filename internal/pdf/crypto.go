package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// IsEncrypted reports whether pdfcpu refuses to read path without a password.
func IsEncrypted(path string) (bool, error) {
	_, err := api.PageCountFile(path)
	if err == nil {
		return false, nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "encrypt") || strings.Contains(msg, "password") || strings.Contains(msg, "decrypt") {
		return true, nil
	}
	return false, fmt.Errorf("check PDF encryption status: %w", err)
}

// Unlock returns a path the renderers can read. Unencrypted files are
// returned as is. Encrypted files are decrypted with password into a
// temporary file that cleanup removes.
func Unlock(path, password string) (string, func(), error) {
	noop := func() {}
	encrypted, err := IsEncrypted(path)
	if err != nil {
		return "", noop, err
	}
	if !encrypted {
		return path, noop, nil
	}
	if password == "" {
		return "", noop, fmt.Errorf("%s is password protected", path)
	}

	tmp, err := os.CreateTemp("", "scanprep-decrypted-*.pdf")
	if err != nil {
		return "", noop, fmt.Errorf("create temporary file: %w", err)
	}
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	if err := api.DecryptFile(path, tmp.Name(), conf); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("decrypt %s: %w", path, err)
	}
	return tmp.Name(), cleanup, nil
}
