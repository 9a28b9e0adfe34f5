package ldif

import (
	"github.com/KilimcininKorOglu/ldvi/internal/codec"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

func decodeBase64(b []byte) (model.Value, error) {
	v, err := codec.DecodeBase64(string(b))
	if err != nil {
		return nil, err
	}
	return model.Value(v), nil
}

func readFileURLValue(urlValue []byte, pos int64) (model.Value, error) {
	v, err := codec.ReadFileURL(urlValue)
	if err != nil {
		return nil, record.NewParseError(record.KindBadEncoding, pos, "invalid file URL value", err)
	}
	return model.Value(v), nil
}
