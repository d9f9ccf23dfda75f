package mediainfo

import "moviecollection/models"

// ToMediaFile projects info into a catalog media file. A non-positive size
// is taken from the container metadata.
func ToMediaFile(info *Info, path string, size int64) *models.MediaFile {
	general := NewGeneralInformation(info)
	if size <= 0 {
		size = general.FileSize
	}
	file := &models.MediaFile{
		Path:      path,
		Size:      size,
		Container: general.Format,
		Duration:  general.Duration,
	}

	if info.Count(StreamVideo) > 0 {
		v := NewVideoStream(info, 0)
		file.Video = &models.VideoProperties{
			Codec:       v.Format,
			Width:       v.Width,
			Height:      v.Height,
			FrameRate:   v.FrameRate,
			BitRate:     v.BitRate,
			AspectRatio: v.AspectRatio,
		}
		if file.Duration == 0 {
			file.Duration = v.Duration
		}
	}

	for i := 0; i < info.Count(StreamAudio); i++ {
		a := NewAudioStream(info, i)
		file.Audio = append(file.Audio, models.AudioProperties{
			Codec:      a.Format,
			Language:   a.Language,
			Channels:   a.Channels,
			SampleRate: a.SamplingRate,
			BitRate:    a.BitRate,
		})
	}
	return file
}
