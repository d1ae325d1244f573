// Package imaging provides the image processing core of the NEST analysis
// pipeline: loading micrographs, isolating the circular sample region, and
// computing a robust brightness statistic from it.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Supported formats
//
// The loader registers decoders for PNG, JPEG, GIF, TIFF, and BMP. NEST
// acquisitions are 16-bit grayscale TIFF; operations preserve the sample
// bit depth for grayscale inputs (image.Gray and image.Gray16).
//
// # The zero sentinel
//
// Pixel value 0 is reserved to mean "outside the region of interest" once
// circular masking has been applied. The intensity estimator excludes exact
// zeros from every statistic. A true zero-intensity foreground pixel is
// therefore indistinguishable from background; this is an accepted limitation
// of the acquisition pipeline.
//
// # Thread safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
package imaging
