package pixiv

import "context"

// FileSource opens the persisted session lazily, once per request, so a
// login performed while the bot is running takes effect without a restart.
type FileSource struct {
	Path string
}

func (f FileSource) IllustInfo(ctx context.Context, id string) (Illust, error) {
	s, err := FromSessionFile(f.Path)
	if err != nil {
		return Illust{}, err
	}
	return s.IllustInfo(ctx, id)
}

func (f FileSource) UserProfile(ctx context.Context, id string) (User, error) {
	s, err := FromSessionFile(f.Path)
	if err != nil {
		return User{}, err
	}
	return s.UserProfile(ctx, id)
}

func (f FileSource) Download(ctx context.Context, rawURL, referer string) ([]byte, error) {
	s, err := FromSessionFile(f.Path)
	if err != nil {
		return nil, err
	}
	return s.Download(ctx, rawURL, referer)
}
