package icd

// Point is a 2D control point in image pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// RegionType identifies the geometry of a region definition on the wire.
type RegionType uint8

const (
	RegionPoint     RegionType = 0
	RegionLine      RegionType = 1
	RegionPolygon   RegionType = 2
	RegionRectangle RegionType = 3
	RegionEllipse   RegionType = 4
	RegionAnnulus   RegionType = 5
)

// String returns the string representation of the region type.
func (rt RegionType) String() string {
	switch rt {
	case RegionPoint:
		return "Point"
	case RegionLine:
		return "Line"
	case RegionPolygon:
		return "Polygon"
	case RegionRectangle:
		return "Rectangle"
	case RegionEllipse:
		return "Ellipse"
	case RegionAnnulus:
		return "Annulus"
	default:
		return "Unknown"
	}
}

// RegisterViewer is the first message a client sends after the socket opens.
type RegisterViewer struct {
	SessionID uint32
	APIKey    string
}

// EncodeRegisterViewer encodes a RegisterViewer to bytes.
func EncodeRegisterViewer(rv *RegisterViewer) []byte {
	e := NewEncoder()
	e.WriteUint32(rv.SessionID)
	e.WriteString(rv.APIKey)
	return e.Bytes()
}

// DecodeRegisterViewer decodes a RegisterViewer from bytes.
func DecodeRegisterViewer(data []byte) (*RegisterViewer, error) {
	d := NewDecoder(data)
	rv := &RegisterViewer{}
	var err error
	if rv.SessionID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if rv.APIKey, err = d.ReadString(); err != nil {
		return nil, err
	}
	return rv, nil
}

// RegisterViewerAck is the server's response to RegisterViewer. The client
// is not Ready until this arrives with Success set.
type RegisterViewerAck struct {
	SessionID uint32
	Success   bool
	Message   string
}

// EncodeRegisterViewerAck encodes a RegisterViewerAck to bytes.
func EncodeRegisterViewerAck(a *RegisterViewerAck) []byte {
	e := NewEncoder()
	e.WriteUint32(a.SessionID)
	e.WriteBool(a.Success)
	e.WriteString(a.Message)
	return e.Bytes()
}

// DecodeRegisterViewerAck decodes a RegisterViewerAck from bytes.
func DecodeRegisterViewerAck(data []byte) (*RegisterViewerAck, error) {
	d := NewDecoder(data)
	a := &RegisterViewerAck{}
	var err error
	if a.SessionID, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if a.Success, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if a.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenFile asks the server to open an image file for this session.
type OpenFile struct {
	Directory string
	File      string
	HDU       string
	FileID    int32
}

// EncodeOpenFile encodes an OpenFile to bytes.
func EncodeOpenFile(of *OpenFile) []byte {
	e := NewEncoder()
	e.WriteString(of.Directory)
	e.WriteString(of.File)
	e.WriteString(of.HDU)
	e.WriteInt32(of.FileID)
	return e.Bytes()
}

// DecodeOpenFile decodes an OpenFile from bytes.
func DecodeOpenFile(data []byte) (*OpenFile, error) {
	d := NewDecoder(data)
	of := &OpenFile{}
	var err error
	if of.Directory, err = d.ReadString(); err != nil {
		return nil, err
	}
	if of.File, err = d.ReadString(); err != nil {
		return nil, err
	}
	if of.HDU, err = d.ReadString(); err != nil {
		return nil, err
	}
	if of.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	return of, nil
}

// OpenFileAck reports the result of OpenFile along with the image extent.
type OpenFileAck struct {
	Success bool
	FileID  int32
	Width   uint32
	Height  uint32
	Message string
}

// EncodeOpenFileAck encodes an OpenFileAck to bytes.
func EncodeOpenFileAck(a *OpenFileAck) []byte {
	e := NewEncoder()
	e.WriteBool(a.Success)
	e.WriteInt32(a.FileID)
	e.WriteUint32(a.Width)
	e.WriteUint32(a.Height)
	e.WriteString(a.Message)
	return e.Bytes()
}

// DecodeOpenFileAck decodes an OpenFileAck from bytes.
func DecodeOpenFileAck(data []byte) (*OpenFileAck, error) {
	d := NewDecoder(data)
	a := &OpenFileAck{}
	var err error
	if a.Success, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if a.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if a.Width, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if a.Height, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if a.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	return a, nil
}

// SetImageView tells the server which sub-volume of the image the viewer
// currently displays. The server answers with SetImageViewAck and starts
// streaming RasterTileData for the visible tiles.
type SetImageView struct {
	FileID int32
	XMin   float64
	XMax   float64
	YMin   float64
	YMax   float64
	ZMin   float64
	ZMax   float64
	Mip    int32
}

// EncodeSetImageView encodes a SetImageView to bytes.
func EncodeSetImageView(v *SetImageView) []byte {
	e := NewEncoder()
	e.WriteInt32(v.FileID)
	e.WriteFloat64(v.XMin)
	e.WriteFloat64(v.XMax)
	e.WriteFloat64(v.YMin)
	e.WriteFloat64(v.YMax)
	e.WriteFloat64(v.ZMin)
	e.WriteFloat64(v.ZMax)
	e.WriteInt32(v.Mip)
	return e.Bytes()
}

// DecodeSetImageView decodes a SetImageView from bytes.
func DecodeSetImageView(data []byte) (*SetImageView, error) {
	d := NewDecoder(data)
	v := &SetImageView{}
	var err error
	if v.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	for _, dst := range []*float64{&v.XMin, &v.XMax, &v.YMin, &v.YMax, &v.ZMin, &v.ZMax} {
		if *dst, err = d.ReadFloat64(); err != nil {
			return nil, err
		}
	}
	if v.Mip, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	return v, nil
}

// SetImageViewAck confirms a SetImageView and carries the effective bounds.
// Image bounds on the client mutate only when this arrives.
type SetImageViewAck struct {
	Success bool
	FileID  int32
	XMin    float64
	XMax    float64
	YMin    float64
	YMax    float64
	ZMin    float64
	ZMax    float64
}

// EncodeSetImageViewAck encodes a SetImageViewAck to bytes.
func EncodeSetImageViewAck(a *SetImageViewAck) []byte {
	e := NewEncoder()
	e.WriteBool(a.Success)
	e.WriteInt32(a.FileID)
	e.WriteFloat64(a.XMin)
	e.WriteFloat64(a.XMax)
	e.WriteFloat64(a.YMin)
	e.WriteFloat64(a.YMax)
	e.WriteFloat64(a.ZMin)
	e.WriteFloat64(a.ZMax)
	return e.Bytes()
}

// DecodeSetImageViewAck decodes a SetImageViewAck from bytes.
func DecodeSetImageViewAck(data []byte) (*SetImageViewAck, error) {
	d := NewDecoder(data)
	a := &SetImageViewAck{}
	var err error
	if a.Success, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if a.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	for _, dst := range []*float64{&a.XMin, &a.XMax, &a.YMin, &a.YMax, &a.ZMin, &a.ZMax} {
		if *dst, err = d.ReadFloat64(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// SetRegion defines or replaces a region on the server.
type SetRegion struct {
	FileID        int32
	RegionID      int32
	RegionType    RegionType
	ControlPoints []Point
	Rotation      float64
}

// EncodeSetRegion encodes a SetRegion to bytes.
func EncodeSetRegion(sr *SetRegion) []byte {
	e := NewEncoder()
	e.WriteInt32(sr.FileID)
	e.WriteInt32(sr.RegionID)
	e.WriteByte(byte(sr.RegionType))
	e.WriteUvarint(uint64(len(sr.ControlPoints)))
	for _, p := range sr.ControlPoints {
		e.WriteFloat64(p.X)
		e.WriteFloat64(p.Y)
	}
	e.WriteFloat64(sr.Rotation)
	return e.Bytes()
}

// DecodeSetRegion decodes a SetRegion from bytes.
func DecodeSetRegion(data []byte) (*SetRegion, error) {
	d := NewDecoder(data)
	sr := &SetRegion{}
	var err error
	if sr.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if sr.RegionID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	rt, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sr.RegionType = RegionType(rt)
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	sr.ControlPoints = make([]Point, count)
	for i := range sr.ControlPoints {
		if sr.ControlPoints[i].X, err = d.ReadFloat64(); err != nil {
			return nil, err
		}
		if sr.ControlPoints[i].Y, err = d.ReadFloat64(); err != nil {
			return nil, err
		}
	}
	if sr.Rotation, err = d.ReadFloat64(); err != nil {
		return nil, err
	}
	return sr, nil
}

// SetRegionAck reports the result of SetRegion.
type SetRegionAck struct {
	Success  bool
	RegionID int32
	Message  string
}

// EncodeSetRegionAck encodes a SetRegionAck to bytes.
func EncodeSetRegionAck(a *SetRegionAck) []byte {
	e := NewEncoder()
	e.WriteBool(a.Success)
	e.WriteInt32(a.RegionID)
	e.WriteString(a.Message)
	return e.Bytes()
}

// DecodeSetRegionAck decodes a SetRegionAck from bytes.
func DecodeSetRegionAck(data []byte) (*SetRegionAck, error) {
	d := NewDecoder(data)
	a := &SetRegionAck{}
	var err error
	if a.Success, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if a.RegionID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if a.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	return a, nil
}

// RasterTileData is one streamed tile of the current image view. The tile
// bytes are opaque at this layer; the raster package sniffs the encoding
// from the leading magic bytes.
type RasterTileData struct {
	FileID int32
	X      int32
	Y      int32
	Layer  int32
	Width  uint32
	Height uint32
	Data   []byte
}

// EncodeRasterTileData encodes a RasterTileData to bytes.
func EncodeRasterTileData(t *RasterTileData) []byte {
	e := NewEncoderWithCap(32 + len(t.Data))
	e.WriteInt32(t.FileID)
	e.WriteSvarint(int64(t.X))
	e.WriteSvarint(int64(t.Y))
	e.WriteSvarint(int64(t.Layer))
	e.WriteUvarint(uint64(t.Width))
	e.WriteUvarint(uint64(t.Height))
	e.WriteLenBytes(t.Data)
	return e.Bytes()
}

// DecodeRasterTileData decodes a RasterTileData from bytes.
func DecodeRasterTileData(data []byte) (*RasterTileData, error) {
	d := NewDecoder(data)
	t := &RasterTileData{}
	var err error
	if t.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	var sv int64
	if sv, err = d.ReadSvarint(); err != nil {
		return nil, err
	}
	t.X = int32(sv)
	if sv, err = d.ReadSvarint(); err != nil {
		return nil, err
	}
	t.Y = int32(sv)
	if sv, err = d.ReadSvarint(); err != nil {
		return nil, err
	}
	t.Layer = int32(sv)
	var uv uint64
	if uv, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	t.Width = uint32(uv)
	if uv, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	t.Height = uint32(uv)
	if t.Data, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	return t, nil
}

// RegionHistogramData carries the histogram computed for one region.
type RegionHistogramData struct {
	FileID         int32
	RegionID       int32
	Channel        int32
	BinWidth       float64
	FirstBinCenter float64
	Bins           []int32
}

// EncodeRegionHistogramData encodes a RegionHistogramData to bytes.
func EncodeRegionHistogramData(h *RegionHistogramData) []byte {
	e := NewEncoder()
	e.WriteInt32(h.FileID)
	e.WriteInt32(h.RegionID)
	e.WriteInt32(h.Channel)
	e.WriteFloat64(h.BinWidth)
	e.WriteFloat64(h.FirstBinCenter)
	e.WriteUvarint(uint64(len(h.Bins)))
	for _, b := range h.Bins {
		e.WriteSvarint(int64(b))
	}
	return e.Bytes()
}

// DecodeRegionHistogramData decodes a RegionHistogramData from bytes.
func DecodeRegionHistogramData(data []byte) (*RegionHistogramData, error) {
	d := NewDecoder(data)
	h := &RegionHistogramData{}
	var err error
	if h.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if h.RegionID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if h.Channel, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if h.BinWidth, err = d.ReadFloat64(); err != nil {
		return nil, err
	}
	if h.FirstBinCenter, err = d.ReadFloat64(); err != nil {
		return nil, err
	}
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	h.Bins = make([]int32, count)
	for i := range h.Bins {
		sv, err := d.ReadSvarint()
		if err != nil {
			return nil, err
		}
		h.Bins[i] = int32(sv)
	}
	return h, nil
}

// SpatialProfileData carries the pixel-row/column profiles through a point.
type SpatialProfileData struct {
	FileID      int32
	X           int32
	Y           int32
	Value       float64
	Coordinates []string
	Profiles    [][]float32
}

// EncodeSpatialProfileData encodes a SpatialProfileData to bytes.
func EncodeSpatialProfileData(sp *SpatialProfileData) []byte {
	e := NewEncoder()
	e.WriteInt32(sp.FileID)
	e.WriteInt32(sp.X)
	e.WriteInt32(sp.Y)
	e.WriteFloat64(sp.Value)
	e.WriteUvarint(uint64(len(sp.Profiles)))
	for i, values := range sp.Profiles {
		coord := ""
		if i < len(sp.Coordinates) {
			coord = sp.Coordinates[i]
		}
		e.WriteString(coord)
		e.WriteUvarint(uint64(len(values)))
		for _, v := range values {
			e.WriteFloat32(v)
		}
	}
	return e.Bytes()
}

// DecodeSpatialProfileData decodes a SpatialProfileData from bytes.
func DecodeSpatialProfileData(data []byte) (*SpatialProfileData, error) {
	d := NewDecoder(data)
	sp := &SpatialProfileData{}
	var err error
	if sp.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if sp.X, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if sp.Y, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if sp.Value, err = d.ReadFloat64(); err != nil {
		return nil, err
	}
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	sp.Coordinates = make([]string, count)
	sp.Profiles = make([][]float32, count)
	for i := 0; i < count; i++ {
		if sp.Coordinates[i], err = d.ReadString(); err != nil {
			return nil, err
		}
		n, err := d.ReadCollectionCount()
		if err != nil {
			return nil, err
		}
		values := make([]float32, n)
		for j := range values {
			if values[j], err = d.ReadFloat32(); err != nil {
				return nil, err
			}
		}
		sp.Profiles[i] = values
	}
	return sp, nil
}

// SpectralProfileData carries the per-channel profile for one region.
type SpectralProfileData struct {
	FileID   int32
	RegionID int32
	Progress float64
	Values   []float64
}

// EncodeSpectralProfileData encodes a SpectralProfileData to bytes.
func EncodeSpectralProfileData(sp *SpectralProfileData) []byte {
	e := NewEncoder()
	e.WriteInt32(sp.FileID)
	e.WriteInt32(sp.RegionID)
	e.WriteFloat64(sp.Progress)
	e.WriteUvarint(uint64(len(sp.Values)))
	for _, v := range sp.Values {
		e.WriteFloat64(v)
	}
	return e.Bytes()
}

// DecodeSpectralProfileData decodes a SpectralProfileData from bytes.
func DecodeSpectralProfileData(data []byte) (*SpectralProfileData, error) {
	d := NewDecoder(data)
	sp := &SpectralProfileData{}
	var err error
	if sp.FileID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if sp.RegionID, err = d.ReadInt32(); err != nil {
		return nil, err
	}
	if sp.Progress, err = d.ReadFloat64(); err != nil {
		return nil, err
	}
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	sp.Values = make([]float64, count)
	for i := range sp.Values {
		if sp.Values[i], err = d.ReadFloat64(); err != nil {
			return nil, err
		}
	}
	return sp, nil
}

// ErrorSeverity classifies a server-reported error.
type ErrorSeverity uint8

const (
	SeverityInfo    ErrorSeverity = 0
	SeverityWarning ErrorSeverity = 1
	SeverityError   ErrorSeverity = 2
	SeverityFatal   ErrorSeverity = 3
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// ErrorData is a server-reported error message.
type ErrorData struct {
	Severity ErrorSeverity
	Message  string
}

// EncodeErrorData encodes an ErrorData to bytes.
func EncodeErrorData(ed *ErrorData) []byte {
	e := NewEncoder()
	e.WriteByte(byte(ed.Severity))
	e.WriteString(ed.Message)
	return e.Bytes()
}

// DecodeErrorData decodes an ErrorData from bytes.
func DecodeErrorData(data []byte) (*ErrorData, error) {
	d := NewDecoder(data)
	sev, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	msg, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &ErrorData{Severity: ErrorSeverity(sev), Message: msg}, nil
}
