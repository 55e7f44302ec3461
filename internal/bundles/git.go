package bundles

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// GitInfo is the git revision checked out in a bundle directory.
type GitInfo struct {
	Branch    string `json:"branch,omitempty"`
	Hash      string `json:"hash"`
	ShortHash string `json:"shortHash"`
}

// ReadGit inspects dir/.git without invoking git. It returns nil when the
// directory is not a repository.
func ReadGit(dir string) (*GitInfo, error) {
	gitDir, err := resolveGitDir(dir)
	if err != nil || gitDir == "" {
		return nil, err
	}

	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	ref := strings.TrimSpace(string(head))

	info := &GitInfo{}
	if target, ok := strings.CutPrefix(ref, "ref: "); ok {
		info.Branch = strings.TrimPrefix(target, "refs/heads/")
		hash, err := resolveRef(gitDir, target)
		if err != nil {
			return nil, err
		}
		info.Hash = hash
	} else {
		info.Hash = ref
	}
	if info.Hash == "" {
		// Fresh repository without commits.
		return nil, nil
	}
	info.ShortHash = info.Hash
	if len(info.ShortHash) > 7 {
		info.ShortHash = info.ShortHash[:7]
	}
	return info, nil
}

func resolveGitDir(dir string) (string, error) {
	gitPath := filepath.Join(dir, ".git")
	stat, err := os.Stat(gitPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat .git: %w", err)
	}
	if stat.IsDir() {
		return gitPath, nil
	}
	// Worktrees and submodules use a "gitdir: <path>" pointer file.
	data, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("read .git: %w", err)
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir: ")
	if !ok {
		return "", fmt.Errorf("unrecognized .git file in %s", dir)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return target, nil
}

func resolveRef(gitDir, ref string) (string, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref)))
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read ref %s: %w", ref, err)
	}

	packed, err := os.Open(filepath.Join(gitDir, "packed-refs"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open packed-refs: %w", err)
	}
	defer packed.Close()

	scanner := bufio.NewScanner(packed)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		hash, name, ok := strings.Cut(line, " ")
		if ok && name == ref {
			return hash, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan packed-refs: %w", err)
	}
	return "", nil
}
