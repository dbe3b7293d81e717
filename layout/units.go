package layout

// Unit conversion constants. The engine works in millimeters throughout;
// font sizes cross the pt boundary at the renderer, pixel dimensions at
// image placement.

const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// Intrinsic pixel sizes are interpreted at 96 DPI when converted to page
// millimeters.
const PxToMm = 25.4 / 96.0

// A4 portrait, millimeters.
const (
	PageWidthA4  = 210.0
	PageHeightA4 = 297.0
)
