package utils

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var audioExt = map[string]bool{".wav": true, ".mp3": true, ".mp4": true, ".m4a": true,
	".ogg": true, ".webm": true, ".wma": true}

//SupportAudioExt checks if audio ext is supported
func SupportAudioExt(ext string) bool {
	return audioExt[ext]
}

// MakeValidateFileName drops the path, lowercases the extension, replaces spaces
// and prefixes the name with ID directory
func MakeValidateFileName(ID, fileName string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	ext := filepath.Ext(base)
	name := strings.TrimSpace(strings.TrimSuffix(base, ext))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", errors.Errorf("wrong file name '%s'", fileName)
	}
	res := strings.ReplaceAll(name, " ", "_") + strings.ToLower(ext)
	if ID == "" {
		return res, nil
	}
	return ID + "/" + res, nil
}

// ContentType returns mime type by the file extension
func ContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".mp4", ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	}
	return "application/octet-stream"
}
