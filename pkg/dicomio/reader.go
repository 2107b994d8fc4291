package dicomio

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomseg/internal/models"
)

// ErrNoPixelData is returned for files without a native pixel data frame
var ErrNoPixelData = errors.New("dicomio: no native pixel data")

// ReadSlice parses one DICOM file and returns its first frame in modality
// units (rescale slope and intercept applied) with the spacing found in the
// header. Panics from the parser are returned as errors.
func ReadSlice(r io.Reader, size int64) (models.Slice, error) {
	ds, err := safelyParse(r, size)
	if err != nil {
		return models.Slice{}, err
	}
	return decode(ds)
}

// safelyParse recovers parser panics on malformed files
func safelyParse(r io.Reader, size int64) (ds dicom.Dataset, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("dicomio: parser panic: %v", panicErr)
		}
	}()

	return dicom.Parse(r, size, nil)
}

func decode(ds dicom.Dataset) (s models.Slice, err error) {
	// The Must* accessors panic on unexpected value types
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("dicomio: unexpected element value: %v", panicErr)
		}
	}()

	pixelDataElement, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return s, ErrNoPixelData
	}
	pixelDataInfo := dicom.MustGetPixelDataInfo(pixelDataElement.Value)
	if len(pixelDataInfo.Frames) == 0 {
		return s, ErrNoPixelData
	}
	fr := pixelDataInfo.Frames[0]
	if fr.IsEncapsulated() {
		return s, fmt.Errorf("%w: encapsulated (compressed) transfer syntax", ErrNoPixelData)
	}
	nativeFrame, err := fr.GetNativeFrame()
	if err != nil {
		return s, fmt.Errorf("dicomio: reading native frame: %w", err)
	}
	if nativeFrame.Rows <= 0 || nativeFrame.Cols <= 0 || len(nativeFrame.Data) < nativeFrame.Rows*nativeFrame.Cols {
		return s, fmt.Errorf("%w: frame of %dx%d holds %d samples",
			ErrNoPixelData, nativeFrame.Rows, nativeFrame.Cols, len(nativeFrame.Data))
	}

	signed := false
	if el, err := ds.FindElementByTag(tag.PixelRepresentation); err == nil {
		signed = dicom.MustGetInts(el.Value)[0] == 1
	}

	slope := floatValue(ds, tag.RescaleSlope, 1)
	if slope == 0 {
		slope = 1
	}
	intercept := floatValue(ds, tag.RescaleIntercept, 0)

	pixels := make([]float64, nativeFrame.Rows*nativeFrame.Cols)
	for i := range pixels {
		v := nativeFrame.Data[i][0]
		if signed {
			v = toSigned(v, nativeFrame.BitsPerSample)
		}
		pixels[i] = float64(v)*slope + intercept
	}

	s = models.NewSlice(pixels, nativeFrame.Rows, nativeFrame.Cols)
	s.Spacing = spacing(ds)
	return s, nil
}

// toSigned reinterprets a raw sample as a two's complement value
func toSigned(v, bits int) int {
	switch bits {
	case 8:
		return int(int8(uint8(v)))
	case 16:
		return int(int16(uint16(v)))
	case 32:
		return int(int32(uint32(v)))
	default:
		return v
	}
}

// spacing reads PixelSpacing (row, column) and SliceThickness. Missing values
// stay zero and are filled in when the volume is built.
func spacing(ds dicom.Dataset) models.Spacing {
	var sp models.Spacing
	if el, err := ds.FindElementByTag(tag.PixelSpacing); err == nil {
		vals := dicom.MustGetStrings(el.Value)
		if len(vals) >= 2 {
			sp.Y, _ = parseDS(vals[0])
			sp.X, _ = parseDS(vals[1])
		} else if len(vals) == 1 {
			sp.X, _ = parseDS(vals[0])
			sp.Y = sp.X
		}
	}
	sp.Z = floatValue(ds, tag.SliceThickness, 0)
	return sp
}

// floatValue reads a decimal string element, returning def when it is absent
// or malformed
func floatValue(ds dicom.Dataset, t tag.Tag, def float64) float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return def
	}
	v, ok := parseDS(vals[0])
	if !ok {
		return def
	}
	return v
}

// parseDS parses a DICOM decimal string
func parseDS(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
