package stopflag

import (
	"os"
	"path/filepath"
)

// FileFlag signals through marker files (<dir>/<sessionID>.stop) on a
// filesystem shared by the API and the bot runner.
type FileFlag struct {
	Dir string
}

func NewFileFlag(dir string) *FileFlag {
	return &FileFlag{Dir: dir}
}

func (f *FileFlag) path(sessionID string) string {
	return filepath.Join(f.Dir, sessionID+".stop")
}

func (f *FileFlag) Set(sessionID string) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path(sessionID), []byte("stop"), 0o644)
}

func (f *FileFlag) IsSet(sessionID string) bool {
	_, err := os.Stat(f.path(sessionID))
	return err == nil
}

func (f *FileFlag) Clear(sessionID string) error {
	err := os.Remove(f.path(sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
