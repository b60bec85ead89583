// bucketlens answers questions about S3 buckets, inspecting them on demand.
package main

func main() {
	Execute()
}
