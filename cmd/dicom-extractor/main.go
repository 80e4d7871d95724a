// --- START OF FINAL REVISED FILE cmd/dicom-extractor/main.go ---
package main

// main is the entry point for dicom-extractor. Build-time variables live in
// root.go and are populated via -ldflags.
func main() {
	Execute()
}

// --- END OF FINAL REVISED FILE cmd/dicom-extractor/main.go ---
