package blade

import "os"

func writeFile(path string, contents []byte) error {
	return os.WriteFile(path, contents, 0o644)
}
